package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/bdk-go/walletchain/pkg/keychain"
	"github.com/zeebo/blake3"
)

// logVersion is the only record format this package understands. Bumping
// it is a breaking change to the on-disk layout.
const logVersion byte = 1

// ErrUnsupportedVersion is returned when a record's version byte does not
// match logVersion. Unlike a truncated record, this is never treated as
// recoverable — an unrecognized format could mean anything.
var ErrUnsupportedVersion = errors.New("store: unsupported changeset log version")

const checksumSize = 32

// TruncatedLogError reports that the log ended mid-record. This is an
// expected outcome of a process crashing between writing a length header
// and flushing the record body, so load_into treats it as recoverable:
// everything before the truncation point is still valid.
type TruncatedLogError struct {
	// DiscardedBytes is how much trailing data was dropped.
	DiscardedBytes int
}

func (e *TruncatedLogError) Error() string {
	return fmt.Sprintf("store: changeset log truncated, discarded %d trailing bytes", e.DiscardedBytes)
}

// changelogKey is the single key under which the append-only record
// stream lives in the backing DB. One wallet gets one log.
var changelogKey = []byte("changelog")

// ChangeLog is an append-only, checksummed log of keychain.ChangeSet
// records layered over a DB. Each record is
// [version:1][len:4 BE][blake3-256 checksum:32][gob-encoded ChangeSet].
type ChangeLog struct {
	db DB
}

// NewChangeLog wraps db with changeset-log semantics.
func NewChangeLog(db DB) *ChangeLog {
	return &ChangeLog{db: db}
}

// AppendChangeset serializes cs and appends it to the log.
func (l *ChangeLog) AppendChangeset(cs keychain.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(cs); err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	sum := blake3.Sum256(body.Bytes())

	var record bytes.Buffer
	record.WriteByte(logVersion)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	record.Write(lenBuf[:])
	record.Write(sum[:])
	record.Write(body.Bytes())

	existing, err := l.db.Get(changelogKey)
	if err != nil {
		existing = nil
	}
	return l.db.Put(changelogKey, append(existing, record.Bytes()...))
}

// LoadInto reads every well-formed record in the log and merges them, in
// order, into a single ChangeSet via ChangeSet.Append. If the log ends
// mid-record the valid prefix is still returned, alongside a
// *TruncatedLogError describing what was discarded.
func (l *ChangeLog) LoadInto() (keychain.ChangeSet, error) {
	raw, err := l.db.Get(changelogKey)
	if err != nil {
		return keychain.ChangeSet{}, nil
	}

	var merged keychain.ChangeSet
	offset := 0
	for offset < len(raw) {
		n, cs, err := decodeRecord(raw[offset:])
		if err != nil {
			if errors.Is(err, errTruncated) {
				return merged, &TruncatedLogError{DiscardedBytes: len(raw) - offset}
			}
			return merged, err
		}
		merged = merged.Append(cs)
		offset += n
	}
	return merged, nil
}

var errTruncated = errors.New("store: truncated record")

// decodeRecord decodes a single record from the head of buf, returning
// the number of bytes consumed and the decoded changeset.
func decodeRecord(buf []byte) (int, keychain.ChangeSet, error) {
	const headerSize = 1 + 4 + checksumSize
	if len(buf) < 1 {
		return 0, keychain.ChangeSet{}, errTruncated
	}

	version := buf[0]
	if version != logVersion {
		return 0, keychain.ChangeSet{}, ErrUnsupportedVersion
	}
	if len(buf) < headerSize {
		return 0, keychain.ChangeSet{}, errTruncated
	}

	bodyLen := int(binary.BigEndian.Uint32(buf[1:5]))
	var sum [checksumSize]byte
	copy(sum[:], buf[5:5+checksumSize])

	total := headerSize + bodyLen
	if len(buf) < total {
		return 0, keychain.ChangeSet{}, errTruncated
	}

	body := buf[headerSize:total]
	if blake3.Sum256(body) != sum {
		return 0, keychain.ChangeSet{}, errTruncated
	}

	var cs keychain.ChangeSet
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&cs); err != nil {
		return 0, keychain.ChangeSet{}, errTruncated
	}
	return total, cs, nil
}

// SetDerivationIndices appends a changeset carrying only the supplied
// derivation-index bookkeeping, with no chain-graph content. Useful for
// persisting index advancement (e.g. from DeriveNew/NextUnused) without
// an accompanying transaction.
func (l *ChangeLog) SetDerivationIndices(indices map[keychain.Keychain]uint32) error {
	return l.AppendChangeset(keychain.ChangeSet{DerivationIndices: indices})
}

// Close closes the underlying DB.
func (l *ChangeLog) Close() error {
	return l.db.Close()
}

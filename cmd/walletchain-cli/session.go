package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bdk-go/walletchain/config"
	"github.com/bdk-go/walletchain/internal/broadcast"
	"github.com/bdk-go/walletchain/internal/log"
	"github.com/bdk-go/walletchain/internal/store"
	"github.com/bdk-go/walletchain/internal/syncer/electrum"
	"github.com/bdk-go/walletchain/pkg/descriptor"
	"github.com/bdk-go/walletchain/pkg/keychain"
)

// session bundles everything a wallet-querying subcommand needs: the
// keychain tracker (chain graph + script index), the two descriptors it
// was built from (kept around to render addresses, which TxOutIndex
// itself has no need to do), and the changeset log backing it.
type session struct {
	cfg     *config.Config
	tracker *keychain.Tracker
	ext     *descriptor.Single
	change  *descriptor.Single // nil if no change descriptor configured
	db      store.DB
	log     *store.ChangeLog
}

// openSession validates cfg, opens the on-disk changeset log, replays it
// into a fresh tracker, and registers the configured descriptors. The
// caller must call close() when done.
func openSession(cfg *config.Config) (*session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.NetworkDataDir(), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	params := cfg.Network.Params()

	ext, err := descriptor.ParseSingle(cfg.Descriptor, 0, params)
	if err != nil {
		return nil, fmt.Errorf("parse DESCRIPTOR: %w", err)
	}

	tracker := keychain.NewTracker()
	if err := tracker.Index().AddKeychain(keychain.External, ext); err != nil {
		return nil, err
	}

	var change *descriptor.Single
	if cfg.ChangeDescriptor != "" {
		change, err = descriptor.ParseSingle(cfg.ChangeDescriptor, 1, params)
		if err != nil {
			return nil, fmt.Errorf("parse CHANGE_DESCRIPTOR: %w", err)
		}
		if err := tracker.Index().AddKeychain(keychain.Internal, change); err != nil {
			return nil, err
		}
	}

	db, err := store.NewBadger(cfg.StoreDir())
	if err != nil {
		return nil, err
	}
	cl := store.NewChangeLog(db)

	cs, err := cl.LoadInto()
	if err != nil {
		if trunc, ok := err.(*store.TruncatedLogError); ok {
			log.Store.Warn().Int("discarded_bytes", trunc.DiscardedBytes).Msg("changeset log truncated, continuing with valid prefix")
		} else {
			db.Close()
			return nil, fmt.Errorf("load changeset log: %w", err)
		}
	}
	if err := tracker.ApplyChangeSet(cs); err != nil {
		db.Close()
		return nil, fmt.Errorf("replay changeset log: %w", err)
	}

	return &session{cfg: cfg, tracker: tracker, ext: ext, change: change, db: db, log: cl}, nil
}

func (s *session) close() {
	s.log.Close()
}

// descriptorFor resolves the Single descriptor backing the named
// keychain, or nil if no change chain is configured.
func (s *session) descriptorFor(k keychain.Keychain) *descriptor.Single {
	if k == keychain.Internal {
		return s.change
	}
	return s.ext
}

// persistIndices records the current derivation-index bookkeeping to the
// changeset log, so a freshly-derived address survives a restart even
// without a sync.
func (s *session) persistIndices() error {
	return s.log.SetDerivationIndices(s.tracker.Index().DerivationIndices())
}

// sync refreshes the tracker against the configured Electrum server, if
// any, and persists whatever changeset results. It is a no-op when the
// configured server is empty (e.g. `electrum.server =` in the config
// file), so offline address/balance queries still work against the
// locally persisted state. The network defaults name a public server,
// so leaving ELECTRUM_SERVER unset does not disable syncing.
func (s *session) sync(ctx context.Context) error {
	if s.cfg.ElectrumServer == "" {
		return nil
	}

	// Make sure every registered keychain has derived at least one
	// script, or there is nothing to hand the syncer to watch.
	if _, _, err := s.tracker.Index().NextUnused(keychain.External); err != nil {
		return fmt.Errorf("seed external watch set: %w", err)
	}
	if s.change != nil {
		if _, _, err := s.tracker.Index().NextUnused(keychain.Internal); err != nil {
			return fmt.Errorf("seed internal watch set: %w", err)
		}
	}

	client, err := electrum.Dial(ctx, s.cfg.ElectrumServer, true)
	if err != nil {
		return fmt.Errorf("dial electrum server %s: %w", s.cfg.ElectrumServer, err)
	}
	defer client.Close()

	var watch []electrum.Script
	for _, entry := range s.tracker.Index().ScriptsOfAllKeychains() {
		watch = append(watch, entry.Script)
	}

	log.Syncer.Info().Str("server", s.cfg.ElectrumServer).Int("scripts", len(watch)).Msg("syncing")
	update, err := client.Sync(ctx, s.tracker.ChainGraph(), watch)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	cs, err := s.tracker.ApplyUpdate(update)
	if err != nil {
		return fmt.Errorf("apply sync update: %w", err)
	}
	if err := s.log.AppendChangeset(cs); err != nil {
		return fmt.Errorf("persist sync changeset: %w", err)
	}
	return nil
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// newBroadcaster opens a fresh Electrum connection dedicated to
// broadcasting, kept separate from the syncing connection's lifecycle.
func newBroadcaster(ctx context.Context, cfg *config.Config) (broadcast.Broadcaster, func(), error) {
	if cfg.ElectrumServer == "" {
		return &broadcast.Fake{}, func() {}, nil
	}
	client, err := electrum.Dial(ctx, cfg.ElectrumServer, true)
	if err != nil {
		return nil, nil, fmt.Errorf("dial electrum server %s: %w", cfg.ElectrumServer, err)
	}
	return broadcast.NewElectrumBroadcaster(client), func() { client.Close() }, nil
}

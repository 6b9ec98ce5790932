package hammersbald

import (
	"github.com/cuemby/hammersbald/pkg/log"
	"github.com/cuemby/hammersbald/pkg/metrics"
)

// recover runs the recovery procedure of §4.8 against raw backends,
// before any storeBuffer or pageCache exists. A non-empty log means a
// batch was in flight when the process ended; its effects are rolled
// back so the database lands exactly on the last completed Batch().
func recover(tb, data, link, lg fileBackend) error {
	logger := log.WithComponent("recovery")

	slots, stores, err := (&journal{backend: lg}).readAll()
	if err != nil {
		return err
	}
	if len(slots) == 0 && len(stores) == 0 {
		return nil
	}

	logger.Info().Int("slot_records", len(slots)).Int("store_records", len(stores)).
		Msg("replaying journal after unclean shutdown")
	metrics.RecoveriesTotal.Inc()

	// Step 1: restore slot/header page pre-images.
	for _, rec := range slots {
		if err := ensureBackendPages(tb, rec.Page+1); err != nil {
			return err
		}
		if err := tb.WriteAt(rec.PreImage, int64(rec.Page)*pageSize); err != nil {
			return err
		}
	}

	// Step 2: truncate stores to their length before the batch.
	for _, rec := range stores {
		var backend fileBackend
		switch rec.Kind {
		case storeData:
			backend = data
		case storeLink:
			backend = link
		default:
			continue
		}
		size, err := backend.Size()
		if err != nil {
			return err
		}
		if uint64(size) > rec.Length {
			if err := backend.Truncate(int64(rec.Length)); err != nil {
				return err
			}
		}
	}

	// Step 3: fsync segments and the index, then truncate the log.
	if err := tb.Sync(); err != nil {
		return err
	}
	if err := data.Sync(); err != nil {
		return err
	}
	if err := link.Sync(); err != nil {
		return err
	}
	if err := lg.Truncate(0); err != nil {
		return newError(KindIo, "recover", err)
	}
	if err := lg.Sync(); err != nil {
		return newError(KindIo, "recover", err)
	}

	logger.Info().Msg("recovery complete")
	return nil
}

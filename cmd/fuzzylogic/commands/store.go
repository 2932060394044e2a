/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Commands for the badger model store used by the HTTP server.
*/

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/kleascm/fuzzylogic/pkg/config"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/kleascm/fuzzylogic/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func openStore(cfg config.StoreConfig, logger *logrus.Logger) (*storage.Store, error) {
	sc := storage.DefaultConfig(cfg.Path)
	if cfg.InMemory {
		sc = storage.InMemoryConfig()
	}
	sc.SyncWrites = cfg.SyncWrites
	sc.Logger = logger
	return storage.Open(sc)
}

// withStore runs fn against the configured store
func withStore(ctx context.Context, fn func(context.Context, *storage.Store) error) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.InMemory {
		return fmt.Errorf("store.in_memory is set, there is nothing to manage")
	}
	store, err := openStore(cfg.Store, nil)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

// RunStoreList prints every stored model with its revision
func RunStoreList(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.Store) error {
		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("📭 Store is empty")
			return nil
		}
		fmt.Printf("📦 %d stored models\n\n", len(names))
		for _, name := range names {
			rec, err := store.GetRecord(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("   • %-24s rev %-4d %s\n", name, rec.Revision, rec.Updated.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

// RunStorePut loads model files and stores them
func RunStorePut(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.Store) error {
		for _, path := range args {
			m, err := modelfile.Load(path)
			if err != nil {
				return err
			}
			rec, err := store.Put(ctx, m)
			if err != nil {
				return fmt.Errorf("storing %s: %w", path, err)
			}
			fmt.Printf("✅ %s stored as %s rev %d\n", path, m.Name(), rec.Revision)
		}
		return nil
	})
}

// RunStoreGet writes a stored model to a file, or as INI to stdout
func RunStoreGet(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.Store) error {
		m, err := store.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if out == "" {
			return modelfile.Encode(os.Stdout, m, modelfile.FormatINI, modelfile.SaveOptions{})
		}
		if err := modelfile.Save(out, m, modelfile.SaveOptions{Comments: true}); err != nil {
			return err
		}
		fmt.Printf("💾 %s written to %s\n", m.Name(), out)
		return nil
	})
}

// RunStoreDelete removes stored models
func RunStoreDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, store *storage.Store) error {
		for _, name := range args {
			if err := store.Delete(ctx, name); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Printf("🗑️  %s deleted\n", name)
		}
		return nil
	})
}

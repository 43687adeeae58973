package cli

import (
	"context"
	"log"
	"os"

	"coined/internal/config"
	"coined/internal/db"
	"coined/internal/models"
	"coined/internal/services"
	"coined/internal/store"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Catalog is the seed file: teacher accounts and the starting shop.
type Catalog struct {
	Teachers  []services.RegisterInput `yaml:"teachers"`
	ShopItems []services.ShopItemInput `yaml:"shop_items"`
}

func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "open seed file")
	}
	defer f.Close()
	var catalog Catalog
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		return Catalog{}, errors.Wrapf(err, "parse %s", path)
	}
	return catalog, nil
}

type registrar interface {
	Register(ctx context.Context, in services.RegisterInput) (models.Account, error)
}

type itemStore interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, item models.ShopItem) error
}

type seedReport struct {
	Teachers int
	Items    int
}

// seed creates whatever part of the catalog is missing. Existing teachers
// and items with the same name are left alone, so it can run repeatedly.
func seed(ctx context.Context, catalog Catalog, accounts registrar, items itemStore) (seedReport, error) {
	var report seedReport
	for _, teacher := range catalog.Teachers {
		teacher.Role = models.RoleTeacher
		_, err := accounts.Register(ctx, teacher)
		if errors.Is(err, services.ErrConflict) {
			log.Printf("seed: teacher %s already exists", teacher.Handle)
			continue
		}
		if err != nil {
			return report, errors.Wrapf(err, "teacher %s", teacher.Handle)
		}
		report.Teachers++
	}
	for _, in := range catalog.ShopItems {
		exists, err := items.ExistsByName(ctx, in.Name)
		if err != nil {
			return report, err
		}
		if exists {
			continue
		}
		item, err := services.NewShopItem(in, "")
		if err != nil {
			return report, errors.Wrapf(err, "shop item %q", in.Name)
		}
		if err := items.Create(ctx, item); err != nil {
			return report, err
		}
		report.Items++
	}
	return report, nil
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the teacher accounts and shop items from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := LoadCatalog(path)
			if err != nil {
				return err
			}
			cfg := config.Load()
			database, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return errors.Wrap(err, "connect database")
			}
			defer database.Close()

			accountStore := store.NewAccountStore(database)
			accounts := services.NewAccountService(db.NewTxRunner(database), accountStore, store.NewAuditStore(database))
			report, err := seed(cmd.Context(), catalog, accounts, store.NewShopStore(database))
			if err != nil {
				return err
			}
			log.Printf("seed: created %d teachers and %d shop items", report.Teachers, report.Items)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "config/seed.yaml", "path to the YAML seed catalog")
	return cmd
}

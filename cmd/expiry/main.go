// Command expiry manages the household product database from a terminal.
//
// Usage:
//
//	expiry list --status expiring-soon
//	expiry add --name Milk --expires 2024-06-17
//	expiry add --name "Tomato sauce" --shelf-life 5 --notify-days 1
//	expiry open 0f8fad5b --date 2024-06-10
//	expiry check --dry-run
//	expiry category add Dairy
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"expiry_tracker/internal/config"
	"expiry_tracker/internal/dispatch"
	"expiry_tracker/internal/expiry"
	"expiry_tracker/internal/model"
	"expiry_tracker/internal/scheduler"
	"expiry_tracker/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "expiry",
		Short:        "Household expiration tracker",
		SilenceUsage: true,
	}

	root.AddCommand(listCmd())
	root.AddCommand(addCmd())
	root.AddCommand(openCmd())
	root.AddCommand(removeCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(pruneCmd())
	root.AddCommand(namedCmd("category", "Manage product categories", categoryStore{}))
	root.AddCommand(namedCmd("location", "Manage storage locations", locationStore{}))
	return root
}

// runStore loads the config, opens the database and hands both to fn along
// with a logger writing to the command's stderr at LOG_LEVEL.
func runStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store storage.Storage, log *slog.Logger) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	return fn(ctx, cfg, store, log)
}

// newLogger accepts the slog level names in any case and falls back to info.
func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func today(cfg *config.Config) time.Time {
	return time.Now().In(cfg.Location)
}

// --------------------------------------------------------------------------
// products
// --------------------------------------------------------------------------

func listCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch model.Status(status) {
			case "", model.StatusSafe, model.StatusExpiringSoon, model.StatusExpired:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			return runStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.Storage, _ *slog.Logger) error {
				products, err := store.ListProducts(ctx)
				if err != nil {
					return err
				}
				now := today(cfg)
				if status != "" {
					products = expiry.FilterByStatus(products, model.Status(status), now)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tWHEN")
				for _, v := range expiry.SortByUrgency(products, now) {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Product.ID[:min(8, len(v.Product.ID))], v.Product.Name, v.Status, v.Label())
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show products with this status (safe, expiring-soon, expired)")
	return cmd
}

func addCmd() *cobra.Command {
	var (
		name, expires        string
		shelfLife, notifyDay int
		never                bool
		category, location   int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new product",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			p := model.Product{Name: name}
			switch {
			case never:
			case expires != "":
				if _, err := time.Parse(model.DateLayout, expires); err != nil {
					return fmt.Errorf("invalid --expires %q, use YYYY-MM-DD", expires)
				}
				p.HasExpirationDate = true
				p.ExpirationDate = expires
			case shelfLife >= 0:
				p.HasExpirationDate = true
				p.UseShelfLife = true
				p.ShelfLifeDays = &shelfLife
			default:
				return fmt.Errorf("one of --expires, --shelf-life or --never is required")
			}
			if cmd.Flags().Changed("notify-days") {
				if notifyDay < 0 {
					return fmt.Errorf("--notify-days must not be negative")
				}
				p.NotifyTiming = &notifyDay
			}
			if category > 0 {
				p.CategoryID = &category
			}
			if location > 0 {
				p.LocationID = &location
			}

			return runStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.Storage, _ *slog.Logger) error {
				if err := store.CreateProduct(ctx, &p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", p.ID, p.Name, expiry.Evaluate(p, today(cfg)).Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Product name")
	cmd.Flags().StringVar(&expires, "expires", "", "Printed expiration date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&shelfLife, "shelf-life", -1, "Days the product keeps once opened")
	cmd.Flags().BoolVar(&never, "never", false, "The product does not expire")
	cmd.Flags().IntVar(&notifyDay, "notify-days", 0, "Remind this many days before expiry instead of the default lead times")
	cmd.Flags().Int64Var(&category, "category", 0, "Category ID")
	cmd.Flags().Int64Var(&location, "location", 0, "Location ID")
	cmd.MarkFlagsMutuallyExclusive("expires", "shelf-life", "never")
	return cmd
}

func openCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "open <id>",
		Short: "Mark a shelf-life product as opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.Storage, _ *slog.Logger) error {
				p, err := resolveProduct(ctx, store, args[0])
				if err != nil {
					return err
				}
				if !p.UseShelfLife {
					return fmt.Errorf("%q has no shelf life", p.Name)
				}

				opened := today(cfg).Format(model.DateLayout)
				if date != "" {
					if _, err := time.Parse(model.DateLayout, date); err != nil {
						return fmt.Errorf("invalid --date %q, use YYYY-MM-DD", date)
					}
					opened = date
				}
				p.OpenedDate = opened
				if err := store.UpdateProduct(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s opened on %s: %s\n", p.Name, opened, expiry.Evaluate(*p, today(cfg)).Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Opening date (YYYY-MM-DD, default today)")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Storage, _ *slog.Logger) error {
				p, err := resolveProduct(ctx, store, args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteProduct(ctx, p.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", p.ID, p.Name)
				return nil
			})
		},
	}
}

func resolveProduct(ctx context.Context, store storage.Storage, prefix string) (*model.Product, error) {
	id, err := store.ResolveProductID(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return store.GetProduct(ctx, id)
}

// --------------------------------------------------------------------------
// reminders
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one reminder pass and print due reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, cfg *config.Config, store storage.Storage, log *slog.Logger) error {
				console := dispatch.NewConsole(cmd.OutOrStdout())
				sched := scheduler.New(store, dispatch.New(console, 0, log), cfg.Location, log)

				if dryRun {
					due, err := sched.Preview(ctx)
					if err != nil {
						return err
					}
					for _, d := range due {
						msg := d.Message()
						fmt.Fprintf(cmd.OutOrStdout(), "%-13s %s\n", d.Severity, msg.Title)
					}
					log.Info("dry run finished", "due", len(due))
					return nil
				}

				start := time.Now()
				rep, err := sched.Evaluate(ctx)
				if err != nil {
					return err
				}
				if rep.Skipped {
					log.Info("notifications are disabled, nothing sent")
					return nil
				}
				log.Info("check finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"products", rep.Products, "due", rep.Due,
					"delivered", rep.Delivered, "failed", rep.Failed, "pruned", rep.Pruned)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only print what would be sent")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop reminder history of deleted products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Storage, log *slog.Logger) error {
				n, err := store.PruneNotifiedKeys(ctx)
				if err != nil {
					return err
				}
				log.Info("pruned notified keys", "removed", n)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// categories and locations
// --------------------------------------------------------------------------

type named struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// namedStore adapts the category and location tables to one command tree.
type namedStore interface {
	create(ctx context.Context, store storage.Storage, name string) (int64, error)
	list(ctx context.Context, store storage.Storage) ([]named, error)
	remove(ctx context.Context, store storage.Storage, id int64) error
}

type categoryStore struct{}

func (categoryStore) create(ctx context.Context, store storage.Storage, name string) (int64, error) {
	c := &model.Category{Name: name}
	err := store.CreateCategory(ctx, c)
	return c.ID, err
}

func (categoryStore) list(ctx context.Context, store storage.Storage) ([]named, error) {
	cs, err := store.ListCategories(ctx)
	out := make([]named, len(cs))
	for i, c := range cs {
		out[i] = named(c)
	}
	return out, err
}

func (categoryStore) remove(ctx context.Context, store storage.Storage, id int64) error {
	return store.DeleteCategory(ctx, id)
}

type locationStore struct{}

func (locationStore) create(ctx context.Context, store storage.Storage, name string) (int64, error) {
	l := &model.Location{Name: name}
	err := store.CreateLocation(ctx, l)
	return l.ID, err
}

func (locationStore) list(ctx context.Context, store storage.Storage) ([]named, error) {
	ls, err := store.ListLocations(ctx)
	out := make([]named, len(ls))
	for i, l := range ls {
		out[i] = named(l)
	}
	return out, err
}

func (locationStore) remove(ctx context.Context, store storage.Storage, id int64) error {
	return store.DeleteLocation(ctx, id)
}

func namedCmd(use, short string, ns namedStore) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a " + use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Storage, _ *slog.Logger) error {
				id, err := ns.create(ctx, store, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s created\n", use, id, args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all " + use + "s",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Storage, _ *slog.Logger) error {
				items, err := ns.list(ctx, store)
				if err != nil {
					return err
				}
				for _, it := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "#%d\t%s\n", it.ID, it.Name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a " + use + "; its products keep no " + use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s ID %q", use, args[0])
			}
			return runStore(cmd, func(ctx context.Context, _ *config.Config, store storage.Storage, _ *slog.Logger) error {
				return ns.remove(ctx, store, id)
			})
		},
	})

	return cmd
}

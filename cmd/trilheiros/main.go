package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/eiannone/keyboard"
	"github.com/urfave/cli/v2"

	"github.com/trilheiros/trilheiros/internal/auth"
	"github.com/trilheiros/trilheiros/internal/connectivity"
	"github.com/trilheiros/trilheiros/internal/coordinator"
	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/internal/reconciler"
	"github.com/trilheiros/trilheiros/internal/remote"
	"github.com/trilheiros/trilheiros/pkg/models"
	"github.com/trilheiros/trilheiros/pkg/utils"
	"github.com/trilheiros/trilheiros/pkg/version"
)

const defaultProfile = "default"

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	app := &cli.App{
		Name:                 "trilheiros",
		Usage:                "Offline-first checklist with remote synchronization",
		Version:              version.Version,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the local database",
				Value: "trilheiros.db",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version:    %s\n", version.Version)
					fmt.Printf("Git commit: %s\n", version.GitCommit)
					fmt.Printf("Built:      %s\n", version.BuildTime)
					return nil
				},
			},
			{
				Name:  "setup",
				Usage: "Store the remote store connection profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "endpoint",
						Usage:    "Remote store endpoint",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "bucket",
						Usage:    "Remote bucket name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "access-key",
						Usage:    "Remote store access key",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "secret-key",
						Usage:    "Remote store secret key",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "insecure",
						Usage: "Disable TLS",
					},
				},
				Action: setupProfile,
			},
			{
				Name:  "signup",
				Usage: "Register a new owner and sign in",
				Flags: ownerFlags(),
				Action: func(c *cli.Context) error {
					return withDB(c, func(database *db.DB) error {
						return auth.New(database).SignUp(c.String("owner"), c.String("secret"))
					})
				},
			},
			{
				Name:  "login",
				Usage: "Sign in as an existing owner",
				Flags: ownerFlags(),
				Action: func(c *cli.Context) error {
					return withDB(c, func(database *db.DB) error {
						return auth.New(database).SignIn(c.String("owner"), c.String("secret"))
					})
				},
			},
			{
				Name:  "logout",
				Usage: "Sign out",
				Action: func(c *cli.Context) error {
					return withDB(c, func(database *db.DB) error {
						return auth.New(database).SignOut()
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Add an item",
				ArgsUsage: "<description>",
				Action:    addItem,
			},
			{
				Name:  "edit",
				Usage: "Change an item's text",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Local item ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "desc",
						Usage:    "New description",
						Required: true,
					},
				},
				Action: editItem,
			},
			{
				Name:  "rm",
				Usage: "Delete an item",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Local item ID",
						Required: true,
					},
				},
				Action: removeItem,
			},
			{
				Name:   "list",
				Usage:  "List the signed-in owner's items",
				Action: listItems,
			},
			{
				Name:   "sync",
				Usage:  "Push pending local changes to the remote store",
				Action: runSync,
			},
			{
				Name:   "status",
				Usage:  "Show sync state counts",
				Action: showStatus,
			},
			{
				Name:  "watch",
				Usage: "Follow local and remote changes until 'q' is pressed",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "probe-interval",
						Usage: "Connectivity probe interval",
						Value: 10 * time.Second,
					},
				},
				Action: watchItems,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ownerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "Owner identifier",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "secret",
			Usage:    "Owner secret",
			Required: true,
		},
	}
}

func withDB(c *cli.Context, fn func(*db.DB) error) error {
	database, err := db.New(c.String("db"))
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

// session bundles what every item command needs.
type session struct {
	db      *db.DB
	ownerID string
	profile *db.Profile
	store   remote.Store
	engine  *reconciler.Engine
	coord   *coordinator.Coordinator
}

func openSession(c *cli.Context) (*session, error) {
	database, err := db.New(c.String("db"))
	if err != nil {
		return nil, err
	}

	ownerID, ok := auth.New(database).CurrentOwner()
	if !ok {
		database.Close()
		return nil, fmt.Errorf("not signed in; run 'trilheiros login' first")
	}

	profile, err := database.GetProfile(defaultProfile)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("no remote profile; run 'trilheiros setup' first")
	}

	store, err := remote.NewMinioStore(profile)
	if err != nil {
		database.Close()
		return nil, err
	}

	engine := reconciler.New(database, store, nil, nil)
	return &session{
		db:      database,
		ownerID: ownerID,
		profile: profile,
		store:   store,
		engine:  engine,
		coord:   coordinator.New(database, engine, ownerID),
	}, nil
}

func (s *session) close() {
	s.db.Close()
}

func setupProfile(c *cli.Context) error {
	return withDB(c, func(database *db.DB) error {
		if err := database.SaveProfile(&db.Profile{
			Name:      defaultProfile,
			Endpoint:  c.String("endpoint"),
			Bucket:    c.String("bucket"),
			AccessKey: c.String("access-key"),
			SecretKey: c.String("secret-key"),
			Insecure:  c.Bool("insecure"),
		}); err != nil {
			return fmt.Errorf("failed to save profile: %v", err)
		}
		fmt.Println("Profile saved")
		return nil
	})
}

func addItem(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: trilheiros add <description>")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.coord.Create(c.Context, c.Args().First()); err != nil {
		return err
	}
	fmt.Println("Item added")
	return nil
}

func editItem(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.coord.Update(c.Context, c.Int64("id"), c.String("desc")); err != nil {
		return err
	}
	fmt.Println("Item updated")
	return nil
}

func removeItem(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.coord.Delete(c.Context, c.Int64("id")); err != nil {
		return err
	}
	fmt.Println("Item removed")
	return nil
}

func listItems(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	items, err := s.db.ListAll(s.ownerID)
	if err != nil {
		return err
	}
	printItems(items)
	return nil
}

func printItems(items []models.Item) {
	if len(items) == 0 {
		fmt.Println("No items")
		return
	}
	for _, it := range items {
		marker := " "
		switch it.SyncState {
		case models.StatePendingSync:
			marker = "*"
		case models.StatePendingDeletion:
			marker = "-"
		}
		fmt.Printf("%4d %s %s\n", it.LocalID, marker, it.Description)
	}
}

func runSync(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	pending, err := s.db.ListUnsynced(s.ownerID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Nothing to sync")
		return nil
	}

	bar := pb.New(len(pending))
	bar.Start()

	var failed int
	s.engine.OnItem = func(item models.Item, err error) {
		if err != nil {
			failed++
		}
		bar.Increment()
	}

	err = s.engine.ReconcileUnsynced(c.Context, s.ownerID)
	bar.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d items, %d failed\n", len(pending)-failed, failed)
	return nil
}

func showStatus(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	stats, err := s.db.Stats(s.ownerID)
	if err != nil {
		return err
	}

	fmt.Printf("Owner: %s\n", s.ownerID)
	fmt.Printf("Total items: %d\n", stats.TotalItems)
	fmt.Printf("Synced: %d\n", stats.SyncedItems)
	fmt.Printf("Pending sync: %d\n", stats.PendingSync)
	fmt.Printf("Pending deletion: %d\n", stats.PendingDelete)

	if pending, err := s.db.ListUnsynced(s.ownerID); err == nil && len(pending) > 0 {
		age := time.Since(time.UnixMilli(pending[0].UpdatedAt))
		fmt.Printf("Oldest pending change: %s ago\n", utils.FormatDuration(age))
	}

	if info, err := os.Stat(c.String("db")); err == nil {
		fmt.Printf("Database size: %s\n", utils.FormatSize(info.Size()))
	}
	return nil
}

// probeAddr picks the TCP address the connectivity prober dials.
func probeAddr(p *db.Profile) string {
	if _, _, err := net.SplitHostPort(p.Endpoint); err == nil {
		return p.Endpoint
	}
	if p.Insecure {
		return net.JoinHostPort(p.Endpoint, "80")
	}
	return net.JoinHostPort(p.Endpoint, "443")
}

func watchItems(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	monitor := connectivity.NewMonitor(
		connectivity.DialProber{Addr: probeAddr(s.profile)},
		c.Duration("probe-interval"),
		c.Duration("probe-interval"),
		func() {
			if err := s.engine.ReconcileUnsynced(ctx, s.ownerID); err != nil {
				log.Printf("reconcile failed: %v", err)
			}
		},
	)
	// While watching, writes consult the monitor instead of always trying.
	s.engine = reconciler.New(s.db, s.store, monitor.Online, nil)
	s.coord = coordinator.New(s.db, s.engine, s.ownerID)

	go monitor.Run(ctx)
	go func() {
		if err := s.coord.Run(ctx); err != nil {
			log.Printf("local watch failed: %v", err)
			cancel()
		}
	}()

	remoteCh, err := s.store.Subscribe(ctx, s.ownerID)
	if err != nil {
		return err
	}
	go func() {
		for snap := range remoteCh {
			if err := s.engine.ReconcileFromRemote(ctx, snap); err != nil {
				log.Printf("apply remote snapshot failed: %v", err)
			}
		}
	}()

	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return err
	}
	defer keyboard.Close()

	snapshots, unsubscribe := s.coord.Subscribe()
	defer unsubscribe()

	fmt.Println("Watching items (press 'q' to quit)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case items := <-snapshots:
			fmt.Println("---")
			printItems(items)
		case ev := <-keys:
			if ev.Err != nil {
				return ev.Err
			}
			if ev.Rune == 'q' || ev.Key == keyboard.KeyEsc || ev.Key == keyboard.KeyCtrlC {
				return nil
			}
		}
	}
}

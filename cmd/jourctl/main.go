// Package main provides jourctl, a small maintenance tool for the jour
// settings store. It reads and writes the same database as the web server,
// which is how the OpenID client is configured before sign-in works.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kimhsiao/jour/internal/db"
	"github.com/kimhsiao/jour/internal/logging"
	"github.com/kimhsiao/jour/internal/models"
	"github.com/kimhsiao/jour/internal/settings"
)

const usage = `usage: jourctl [-data-dir dir] <command> [args]

Commands:
  list                     list every stored setting key
  get <key>                print a setting value
  set <key> <value>        store a setting value
  set-encrypted <key> <value>
                           store a setting value encrypted at rest
  openid                   print the OpenID client configuration
`

func main() {
	var dataDir string
	flag.StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding the journal database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logging.Init(os.Stderr, logging.LevelWarn)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store, cleanup, err := openStore(dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jourctl:", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := run(context.Background(), store, args); err != nil {
		fmt.Fprintln(os.Stderr, "jourctl:", err)
		os.Exit(1)
	}
}

func openStore(dataDir string) (*settings.Store, func(), error) {
	database, err := db.Open(dataDir)
	if err != nil {
		return nil, nil, err
	}
	if err := db.NewMigrator(database.DB).Up(); err != nil {
		database.Close()
		return nil, nil, err
	}
	store := settings.NewStore(db.NewRepository(database.DB))
	return store, func() { database.Close() }, nil
}

func run(ctx context.Context, store *settings.Store, args []string) error {
	switch args[0] {
	case "list":
		keys, err := store.Keys(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil

	case "get":
		if len(args) != 2 {
			return fmt.Errorf("get takes exactly one key")
		}
		value, err := store.GetPlain(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil

	case "set":
		if len(args) != 3 {
			return fmt.Errorf("set takes a key and a value")
		}
		if args[1] == models.SettingSecretKey {
			return fmt.Errorf("%s is managed by the application and cannot be set", models.SettingSecretKey)
		}
		return store.SetPlain(ctx, args[1], args[2])

	case "set-encrypted":
		if len(args) != 3 {
			return fmt.Errorf("set-encrypted takes a key and a value")
		}
		if args[1] == models.SettingSecretKey {
			return fmt.Errorf("%s is managed by the application and cannot be set", models.SettingSecretKey)
		}
		return store.SetEncrypted(ctx, args[1], args[2])

	case "openid":
		cfg, err := store.Load(ctx)
		if err != nil {
			return err
		}
		fmt.Println("client id:          ", cfg.OpenIDClientID)
		fmt.Println("client secret:      ", cfg.OpenIDClientSecret)
		fmt.Println("discovery document: ", cfg.OpenIDDiscoveryDocument)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("JOUR_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

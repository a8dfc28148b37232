package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"trade_engine/internal/strategy"
	"trade_engine/pkg/db"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// strategyctl imports strategy definitions into the database and exports
// them back out as JSON. Definitions are compiled before import, so a
// malformed tree never reaches the engine.
//
//	strategyctl import <file.json> [symbol...]
//	strategyctl export <name>

func main() {
	viper.SetDefault("db_dsn", "postgres://localhost:5432/trade_engine")
	viper.SetEnvPrefix("")
	_ = viper.BindEnv("db_dsn", "DATABASE_DSN")

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: strategyctl import <file.json> [symbol...] | export <name>")
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: viper.GetString("db_dsn")})
	if err != nil {
		fail(errors.Wrap(err, "connect"))
	}
	defer pool.Close()
	txm := db.NewPgTxManager(pool)

	switch os.Args[1] {
	case "import":
		err = runImport(ctx, txm, os.Args[2], os.Args[3:])
	case "export":
		err = runExport(ctx, txm, os.Args[2])
	default:
		err = errors.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		fail(err)
	}
}

func runImport(ctx context.Context, txm *db.PgTxManager, file string, symbols []string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read definition")
	}
	def, err := strategy.ParseDefinition(raw)
	if err != nil {
		return errors.Wrap(err, "parse definition")
	}
	if def.Name == "" {
		return errors.New("definition has no name")
	}
	compiled, err := strategy.Compile(def)
	if err != nil {
		return errors.Wrap(err, "compile definition")
	}

	conn := txm.Conn()
	_, err = conn.Exec(ctx, `
		INSERT INTO strategies (name, definition) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition`,
		def.Name, raw)
	if err != nil {
		return errors.Wrap(err, "upsert strategy")
	}

	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		_, err = conn.Exec(ctx, `
			INSERT INTO symbol_strategies (symbol, strategy, active) VALUES ($1, $2, true)
			ON CONFLICT (symbol) DO UPDATE SET strategy = EXCLUDED.strategy, active = true`,
			symbol, def.Name)
		if err != nil {
			return errors.Wrapf(err, "assign %s", symbol)
		}
	}

	tfs := compiled.Requirements.Timeframes()
	fmt.Printf("imported %q: %d indicator requirements over %d timeframes, %d symbols assigned\n",
		def.Name, len(compiled.Requirements), len(tfs), len(symbols))
	fmt.Println("note: the engine picks up changes on its next strategy reload")
	return nil
}

func runExport(ctx context.Context, txm *db.PgTxManager, name string) error {
	var raw []byte
	err := txm.Conn().QueryRow(ctx,
		`SELECT definition FROM strategies WHERE name = $1`, name).Scan(&raw)
	if err != nil {
		return errors.Wrapf(err, "load %q", name)
	}
	_, err = os.Stdout.Write(append(raw, '\n'))
	return err
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "strategyctl:", err)
	os.Exit(1)
}

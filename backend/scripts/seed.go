package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"finquery/backend/pkg/config"
	"finquery/backend/pkg/logger"
)

var schema = []string{
	`CREATE TABLE accounts (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		opened_on TEXT NOT NULL
	)`,
	`CREATE TABLE quarterly_financials (
		quarter TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL,
		revenue REAL NOT NULL,
		expenses REAL NOT NULL,
		net_income REAL NOT NULL,
		PRIMARY KEY (fiscal_year, quarter)
	)`,
	`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		posted_on TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT
	)`,
}

type account struct {
	id       int
	name     string
	kind     string
	openedOn string
}

type quarter struct {
	quarter  string
	revenue  float64
	expenses float64
}

var accounts = []account{
	{1, "Operating Account", "checking", "2023-01-03"},
	{2, "Payroll Account", "checking", "2023-01-03"},
	{3, "Reserve Fund", "savings", "2023-02-15"},
	{4, "Corporate Card", "credit", "2023-04-01"},
}

var quarters = []quarter{
	{"Q1", 5000000, 3900000},
	{"Q2", 6200000, 4550000},
	{"Q3", 5800000, 4300000},
	{"Q4", 7100000, 5020000},
}

var categories = []string{"payroll", "rent", "software", "travel", "sales"}

func main() {
	reset := flag.Bool("reset", false, "Drop existing tables before seeding")
	skipConfirm := flag.Bool("y", false, "Skip confirmation prompt")
	year := flag.Int("year", 2024, "Fiscal year for the seeded rows")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Seeding sample financial database", zap.String("path", cfg.DatabasePath))

	if *reset && !*skipConfirm {
		log.Warn("This will DELETE the seeded tables in the database.")
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		var response string
		fmt.Scanln(&response)
		if response != "yes" && response != "y" {
			log.Info("Aborted.")
			os.Exit(0)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatal("Failed to create database directory", zap.Error(err))
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seed(ctx, db, *reset, *year); err != nil {
		log.Fatal("Failed to seed database", zap.Error(err))
	}

	log.Info("Seed complete",
		zap.Int("accounts", len(accounts)),
		zap.Int("quarters", len(quarters)),
	)
}

func seed(ctx context.Context, db *sql.DB, reset bool, year int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if reset {
		for _, table := range []string{"transactions", "quarterly_financials", "accounts"} {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
	}

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema (use -reset to replace existing tables): %w", err)
		}
	}

	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, type, opened_on) VALUES (?, ?, ?, ?)`,
			a.id, a.name, a.kind, a.openedOn,
		); err != nil {
			return fmt.Errorf("insert account %d: %w", a.id, err)
		}
	}

	for _, q := range quarters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quarterly_financials (quarter, fiscal_year, revenue, expenses, net_income) VALUES (?, ?, ?, ?, ?)`,
			q.quarter, year, q.revenue, q.expenses, q.revenue-q.expenses,
		); err != nil {
			return fmt.Errorf("insert quarter %s: %w", q.quarter, err)
		}
	}

	// three transactions per account per month, amounts derived from the row index
	id := 1
	for month := 1; month <= 12; month++ {
		for _, a := range accounts {
			for n := 0; n < 3; n++ {
				category := categories[(id+n)%len(categories)]
				amount := -float64(100*((id*37)%50) + 25*n + 250)
				if category == "sales" {
					amount = -amount * 4
				}
				postedOn := fmt.Sprintf("%d-%02d-%02d", year, month, 3+n*9)
				desc := fmt.Sprintf("%s %s", a.name, category)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO transactions (id, account_id, posted_on, amount, category, description) VALUES (?, ?, ?, ?, ?, ?)`,
					id, a.id, postedOn, amount, category, desc,
				); err != nil {
					return fmt.Errorf("insert transaction %d: %w", id, err)
				}
				id++
			}
		}
	}

	return tx.Commit()
}

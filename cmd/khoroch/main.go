package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"khoroch/internal/app"
	"khoroch/internal/cli"
	"khoroch/internal/core"
	"khoroch/internal/log"
	"khoroch/internal/services"
	"khoroch/internal/storage"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string) error
}

var commands = map[string]command{
	"migrate":        {"apply pending schema migrations and print the version", runMigrate},
	"seed":           {"insert demo wallets, categories and transactions", runSeed},
	"wallets":        {"list wallets with their running balance", runWallets},
	"add-wallet":     {"create a wallet", runAddWallet},
	"transactions":   {"list one page of a month's transactions", runTransactions},
	"add":            {"record a transaction", runAdd},
	"delete":         {"delete a transaction", runDelete},
	"summary":        {"income, expense and balance for a month", runSummary},
	"trend":          {"monthly totals for the months up to a given one", runTrend},
	"backup":         {"write a JSON backup into BACKUP_DIR", runBackup},
	"restore":        {"replace all data with a JSON backup", runRestore},
	"default-wallet": {"show or set the default wallet", runDefaultWallet},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(os.Stderr)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stderr)
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	a, err := cli.InitApp(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to start", err)
	}

	err = cmd.run(ctx, a, os.Args[2:])
	if cerr := a.Close(); cerr != nil {
		logger.Error("Close failed", log.FieldError, cerr)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		cli.Fatal(logger, name+" failed", err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: khoroch <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-15s %s\n", n, commands[n].usage)
	}
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parseMonth(a *app.App, s string) (core.Month, error) {
	if s == "" {
		return core.MonthOf(time.Now().In(a.Location())), nil
	}
	return core.ParseMonth(s, a.Location())
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func runMigrate(ctx context.Context, a *app.App, args []string) error {
	v, err := a.Repo.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (target %d)\n", v, storage.SchemaVersion)
	return nil
}

func runSeed(ctx context.Context, a *app.App, args []string) error {
	def := storage.DefaultSeedOptions()
	fs := newFlags("seed")
	wallets := fs.Int("wallets", def.Wallets, "number of wallets")
	categories := fs.Int("categories", def.Categories, "number of categories")
	transactions := fs.Int("transactions", def.Transactions, "number of transactions, one per day back from today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.Repo.Seed(ctx, storage.SeedOptions{
		Wallets:      *wallets,
		Categories:   *categories,
		Transactions: *transactions,
		Now:          time.Now().In(a.Location()),
	})
}

func runWallets(ctx context.Context, a *app.App, args []string) error {
	wallets, err := a.Wallets.GetWallets(ctx)
	if err != nil {
		return err
	}
	def, err := a.Wallets.DefaultWalletID(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tINITIAL\tCURRENT\t")
	for _, w := range wallets {
		mark := ""
		if w.ID == def {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%s\t%s\t%s\t\n", w.ID, mark, w.Name, w.Type,
			core.FormatAmount(w.InitialAmount), core.FormatAmount(w.CurrentAmount))
	}
	return tw.Flush()
}

func runAddWallet(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("add-wallet")
	name := fs.String("name", "", "wallet name (required)")
	typ := fs.String("type", core.DefaultWalletType, "Cash, Bank, Credit...")
	icon := fs.String("icon", "", "icon")
	color := fs.String("color", "", "display color")
	initial := fs.String("initial", "0", "starting balance")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := parseSigned(*initial)
	if err != nil {
		return err
	}
	w, err := a.Wallets.AddWallet(ctx, services.NewWallet{
		Name:          *name,
		Type:          *typ,
		Icon:          optional(*icon),
		Color:         optional(*color),
		InitialAmount: amount,
	})
	if err != nil {
		return err
	}
	fmt.Printf("wallet %d created\n", w.ID)
	return nil
}

// parseSigned is ParseAmount plus zero and a leading minus, for credit
// balances.
func parseSigned(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); err == nil && d.IsZero() {
		return decimal.Zero, nil
	}
	v, err := core.ParseAmount(strings.TrimPrefix(s, "-"))
	if err != nil {
		return decimal.Zero, err
	}
	if strings.HasPrefix(s, "-") {
		v = v.Neg()
	}
	return v, nil
}

func runTransactions(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("transactions")
	month := fs.String("month", "", "YYYY-MM (default: current month)")
	page := fs.Int("page", 1, "1-based page")
	limit := fs.Int("limit", 0, "page size (default: PAGE_SIZE)")
	wallet := fs.Int64("wallet", 0, "only this wallet")
	typ := fs.String("type", services.TypeFilterAll, "income, expense, transfer or all")
	search := fs.String("search", "", "substring of the note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := parseMonth(a, *month)
	if err != nil {
		return err
	}

	rows, err := a.Transactions.GetTransactions(ctx, services.TransactionQuery{
		Date:     m.Start(),
		Page:     *page,
		Limit:    *limit,
		WalletID: *wallet,
		Type:     *typ,
		Search:   *search,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tWALLET\tNOTE\t")
	for _, t := range rows {
		note := ""
		if t.Note != nil {
			note = *t.Note
		}
		route := fmt.Sprint(t.WalletID)
		if t.ToWalletID != nil {
			route += fmt.Sprintf(" -> %d", *t.ToWalletID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", t.ID,
			time.Unix(t.Date, 0).In(a.Location()).Format("2006-01-02"),
			t.Type, core.FormatAmount(t.Amount), route, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if a.Transactions.State().HasMore {
		fmt.Printf("more: -page %d\n", *page+1)
	}
	return nil
}

func runAdd(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("add")
	typ := fs.String("type", string(core.Expense), "income, expense or transfer")
	amount := fs.String("amount", "", "amount, dot or comma decimals (required)")
	wallet := fs.Int64("wallet", 0, "wallet id (default: the default wallet)")
	to := fs.Int64("to", 0, "destination wallet for transfers")
	date := fs.String("date", "", "YYYY-MM-DD (default: today)")
	note := fs.String("note", "", "note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	walletID := *wallet
	if walletID == 0 {
		if walletID, err = a.Wallets.DefaultWalletID(ctx); err != nil {
			return err
		}
	}
	when := time.Now().In(a.Location())
	if *date != "" {
		if when, err = time.ParseInLocation("2006-01-02", *date, a.Location()); err != nil {
			return fmt.Errorf("%w: %q (want YYYY-MM-DD)", core.ErrInvalidDate, *date)
		}
	}
	in := services.NewTransaction{
		Type:     *typ,
		Amount:   value,
		WalletID: walletID,
		Date:     when.Unix(),
		Note:     optional(*note),
	}
	if *to != 0 {
		in.ToWalletID = to
	}

	t, err := a.Transactions.AddTransaction(ctx, in)
	if err != nil {
		return err
	}
	s := a.Balance.Summary()
	fmt.Printf("transaction %d recorded; %s balance %s\n", t.ID, s.Month, core.FormatAmount(s.Balance))
	return nil
}

func runDelete(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("delete")
	id := fs.Int64("id", 0, "transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.Transactions.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("transaction %d deleted\n", *id)
	return nil
}

func runSummary(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("summary")
	month := fs.String("month", "", "YYYY-MM (default: current month)")
	wallet := fs.Int64("wallet", 0, "all-time totals for one wallet instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *wallet != 0 {
		t, err := a.Balance.GetWalletSummary(ctx, *wallet)
		if err != nil {
			return err
		}
		printTotals(fmt.Sprintf("wallet %d", *wallet), t)
		return nil
	}

	m, err := parseMonth(a, *month)
	if err != nil {
		return err
	}
	s, err := a.Balance.GetSummary(ctx, m)
	if err != nil {
		return err
	}
	printTotals(s.Month.String(), s.Totals)
	return nil
}

func printTotals(label string, t core.Totals) {
	fmt.Printf("%s\tincome %s\texpense %s\tbalance %s\n", label,
		core.FormatAmount(t.Income), core.FormatAmount(t.Expense), core.FormatAmount(t.Balance))
}

func runTrend(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("trend")
	through := fs.String("through", "", "last month, YYYY-MM (default: current month)")
	months := fs.Int("months", services.DefaultTrendMonths, "number of months")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := parseMonth(a, *through)
	if err != nil {
		return err
	}
	trend, err := a.Balance.GetTrend(ctx, m, *months)
	if err != nil {
		return err
	}
	for _, s := range trend {
		printTotals(s.Month.String(), s.Totals)
	}
	return nil
}

func runBackup(ctx context.Context, a *app.App, args []string) error {
	path, err := a.WriteBackup(ctx)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runRestore(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("restore")
	file := fs.String("file", "", "backup file to restore (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}
	snap, err := a.RestoreBackup(ctx, *file)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d wallets, %d categories, %d transactions from %s\n",
		len(snap.Data.Wallets), len(snap.Data.Categories), len(snap.Data.Transactions),
		time.UnixMilli(snap.Timestamp).In(a.Location()).Format(time.RFC3339))
	return nil
}

func runDefaultWallet(ctx context.Context, a *app.App, args []string) error {
	fs := newFlags("default-wallet")
	set := fs.Int64("set", 0, "wallet id to make the default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *set != 0 {
		if err := a.Wallets.SetDefaultWalletID(ctx, *set); err != nil {
			return err
		}
	}
	id, err := a.Wallets.DefaultWalletID(ctx)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

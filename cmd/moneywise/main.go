package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"moneywise/internal/amqp"
	"moneywise/internal/cli"
	"moneywise/internal/core"
	"moneywise/internal/services"
)

const usageText = `moneywise - personal finance tracker

Usage:
  moneywise add -category NAME -amount N [-type expense|income] [-date YYYY-MM-DD] [-note TEXT]
  moneywise list [-month YYYY-MM]
  moneywise today
  moneywise delete ID [ID...]
  moneywise toggle-day DAY
  moneywise categories list|add|remove [-type expense|income] [NAME]
  moneywise summary [-year N] [-month N]
  moneywise savings
  moneywise sync [-y]
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("moneywise")
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitLocalStore(logger, cfg.LocalDBPath)
	defer store.Close()

	var events services.EventPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
	}

	orch := services.NewOrchestrator(store, cli.InitRemote(logger, cfg), events, logger)

	ctx := context.Background()
	ledger, err := services.NewLedger(ctx, store, orch, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var cmdErr error
	switch os.Args[1] {
	case "add":
		cmdErr = runAdd(ctx, ledger, os.Args[2:])
	case "list":
		cmdErr = runList(ledger, os.Args[2:])
	case "today":
		cmdErr = runToday(ledger)
	case "delete":
		cmdErr = runDelete(ctx, ledger, os.Args[2:])
	case "toggle-day":
		cmdErr = runToggleDay(ctx, ledger, os.Args[2:])
	case "categories":
		cmdErr = runCategories(ctx, ledger, os.Args[2:])
	case "summary":
		cmdErr = runSummary(ledger, os.Args[2:])
	case "savings":
		cmdErr = runSavings(ledger)
	case "sync":
		cmdErr = runSync(ctx, ledger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, "error:", cmdErr)
		os.Exit(1)
	}
}

func parseType(s string) (core.TransactionType, error) {
	switch s {
	case "expense":
		return core.Expense, nil
	case "income":
		return core.Income, nil
	default:
		return "", fmt.Errorf("unknown type %q (expense or income)", s)
	}
}

func runAdd(ctx context.Context, ledger *services.Ledger, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	typeFlag := fs.String("type", "expense", "entry type: expense or income")
	dateFlag := fs.String("date", time.Now().Format("2006-01-02"), "ledger date (YYYY-MM-DD)")
	categoryFlag := fs.String("category", "", "category name")
	amountFlag := fs.Float64("amount", 0, "amount, must be positive")
	noteFlag := fs.String("note", "", "optional note")
	fs.Parse(args)

	typ, err := parseType(*typeFlag)
	if err != nil {
		return err
	}
	tx, err := ledger.AddTransaction(ctx, typ, *dateFlag, *categoryFlag, *amountFlag, *noteFlag)
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s %s %s %.2f (%s)\n", tx.Date, tx.Type.Label(), tx.Category, tx.Amount, tx.ID)
	return nil
}

func runList(ledger *services.Ledger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	monthFlag := fs.String("month", "", "filter by month (YYYY-MM)")
	fs.Parse(args)

	snap := ledger.Snapshot()
	txs := snap.Transactions
	if *monthFlag != "" {
		var filtered []core.Transaction
		for _, t := range txs {
			if strings.HasPrefix(t.Date, *monthFlag) {
				filtered = append(filtered, t)
			}
		}
		txs = filtered
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date > txs[j].Date })
	printTransactions(txs)
	return nil
}

func runToday(ledger *services.Ledger) error {
	printTransactions(ledger.RecordedToday(10))
	return nil
}

func printTransactions(txs []core.Transaction) {
	if len(txs) == 0 {
		fmt.Println("no entries")
		return
	}
	for _, t := range txs {
		fmt.Printf("%s  %s  %-6s  %10.2f  %s  %s\n", t.ID, t.Date, t.Type.Label(), t.Amount, t.Category, t.Note)
	}
}

func runDelete(ctx context.Context, ledger *services.Ledger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete needs at least one id")
	}
	n, err := ledger.DeleteTransactions(ctx, args)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d of %d\n", n, len(args))
	return nil
}

func runToggleDay(ctx context.Context, ledger *services.Ledger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("toggle-day needs exactly one day number")
	}
	day, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid day %q", args[0])
	}
	completed, err := ledger.ToggleSavingsDay(ctx, day)
	if err != nil {
		return err
	}
	if completed {
		fmt.Printf("day %d marked done\n", day)
	} else {
		fmt.Printf("day %d unmarked\n", day)
	}
	return nil
}

func runCategories(ctx context.Context, ledger *services.Ledger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("categories needs a subcommand: list, add or remove")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("categories "+sub, flag.ExitOnError)
	typeFlag := fs.String("type", "expense", "category list: expense or income")
	fs.Parse(rest)
	typ, err := parseType(*typeFlag)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		for _, c := range ledger.Categories(typ) {
			fmt.Println(c)
		}
		return nil
	case "add":
		if fs.NArg() != 1 {
			return fmt.Errorf("categories add needs a name")
		}
		return ledger.AddCategory(ctx, typ, fs.Arg(0))
	case "remove":
		if fs.NArg() != 1 {
			return fmt.Errorf("categories remove needs a name")
		}
		return ledger.RemoveCategory(ctx, typ, fs.Arg(0))
	default:
		return fmt.Errorf("unknown categories subcommand %q", sub)
	}
}

func runSummary(ledger *services.Ledger, args []string) error {
	now := time.Now()
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	yearFlag := fs.Int("year", now.Year(), "year")
	monthFlag := fs.Int("month", int(now.Month()), "month (1-12)")
	fs.Parse(args)

	net := ledger.MonthNet(*yearFlag, *monthFlag)
	days := make([]int, 0, len(net))
	for d := range net {
		days = append(days, d)
	}
	sort.Ints(days)

	total := 0.0
	for _, d := range days {
		fmt.Printf("%04d-%02d-%02d  %+10.2f\n", *yearFlag, *monthFlag, d, net[d])
		total += net[d]
	}
	fmt.Printf("net for %04d-%02d: %+.2f\n", *yearFlag, *monthFlag, total)
	return nil
}

func runSavings(ledger *services.Ledger) error {
	p := ledger.SavingsProgress()
	fmt.Printf("days completed: %d/%d\n", p.CompletedCount, core.SavingsMaxDay)
	fmt.Printf("saved: %d of %d (%.1f%%)\n", p.Saved, p.Target, p.Percent)
	return nil
}

func runSync(ctx context.Context, ledger *services.Ledger, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	yesFlag := fs.Bool("y", false, "skip the confirmation prompt")
	fs.Parse(args)

	confirm := func() bool {
		if *yesFlag {
			return true
		}
		fmt.Print("push local state to the remote store, replacing it? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
	if err := ledger.ManualSync(ctx, confirm); err != nil {
		return err
	}
	fmt.Println("sync complete")
	return nil
}

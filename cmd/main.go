package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"valueinvestor/cmd/allocator"
	"valueinvestor/cmd/ledgerops"
	"valueinvestor/cmd/probe"
	"valueinvestor/cmd/runonce"
	"valueinvestor/cmd/universe"
	"valueinvestor/src/database"
	"valueinvestor/src/repository"
)

var Version string

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	app := cli.NewApp()
	app.Name = "valueinvestor"
	app.Usage = "The value investor command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		schedulerCMD,
		runOnceCMD,
		importUniverseCMD,
		unhaltCMD,
		rebuildLedgerCMD,
		probeCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	modeFlag = cli.StringFlag{
		Name:  "mode",
		Usage: "book to act on: SIMULATION or LIVE",
	}

	schedulerCMD = cli.Command{
		Name:        "scheduler",
		Usage:       "run the allocation scheduler",
		Action:      schedulerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the recurring allocation cycle without the read API`,
	}
	runOnceCMD = cli.Command{
		Name:        "run-once",
		Usage:       "run one allocation cycle now",
		Action:      runOnceAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run a single cycle and print its report`,
	}
	importUniverseCMD = cli.Command{
		Name:      "import-universe",
		Usage:     "import the candidate universe from CSV",
		Action:    importUniverseAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file", Usage: "CSV with symbol,rank,fundamentals (default UNIVERSE_CSV)"},
		},
		Description: `Upsert stock_fundamentals from a CSV file`,
	}
	unhaltCMD = cli.Command{
		Name:      "unhalt",
		Usage:     "clear the halt on a symbol",
		Action:    unhaltAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			modeFlag,
			cli.StringFlag{Name: "symbol", Usage: "symbol to unhalt"},
		},
		Description: `Allow fills on a symbol again after checking it`,
	}
	rebuildLedgerCMD = cli.Command{
		Name:        "rebuild-ledger",
		Usage:       "rebuild a book from the transaction log",
		Action:      rebuildLedgerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{modeFlag},
		Description: `Replay every fill of a book on top of its configured opening cash`,
	}
	probeCMD = cli.Command{
		Name:        "probe",
		Usage:       "check the broker adapter and analysis engine",
		Action:      probeAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Probe the external collaborators without trading`,
	}
)

func schedulerAction(_ *cli.Context) error {
	logrus.Info("Starting scheduler CMD")

	s := &allocator.Allocator{}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func runOnceAction(_ *cli.Context) error {
	logrus.Info("Starting run-once CMD")

	r := &runonce.RunOnce{Out: os.Stdout}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func importUniverseAction(c *cli.Context) error {
	logrus.Info("Starting import-universe CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	importer := &universe.Importer{
		Log:  logrus.WithField("cmd", "import-universe"),
		Repo: repository.NewStockFundamentalRepository(),
	}
	n, err := importer.ImportFile(context.Background(), c.String("file"))
	if err != nil {
		logrus.WithError(err).Error("Import failed")
		return err
	}
	fmt.Printf("imported %d symbols\n", n)
	return nil
}

func unhaltAction(c *cli.Context) error {
	ops := &ledgerops.LedgerOps{Log: logrus.WithField("cmd", "unhalt")}
	return ops.Unhalt(context.Background(), c.String("mode"), c.String("symbol"))
}

func rebuildLedgerAction(c *cli.Context) error {
	ops := &ledgerops.LedgerOps{Log: logrus.WithField("cmd", "rebuild-ledger")}
	return ops.Rebuild(context.Background(), c.String("mode"))
}

func probeAction(_ *cli.Context) error {
	return probe.New().Run(context.Background(), probe.ConfiguredMode())
}

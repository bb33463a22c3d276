package main

import (
	"fmt"
	"os"
	"sort"

	cliutil "github.com/bioimage-io/backoffice/cmd"
	"github.com/bioimage-io/backoffice/node/collection"
	"github.com/bioimage-io/backoffice/node/repo"
	"github.com/bioimage-io/backoffice/types"
	"github.com/fatih/color"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("main")

var subsystems = []string{
	"main",
	"backoffice",
	"store",
	"cache",
	"document",
	"lifecycle",
	"resource",
	"collection",
	"backup",
	"zenodo",
	"validator",
	"notify",
	"thumbnail",
	"idparts",
	"config",
	"repo",
}

func before(_ *cli.Context) error {
	level := "INFO"
	if cliutil.IsVeryVerbose {
		level = "DEBUG"
	}
	for _, s := range subsystems {
		_ = logging.SetLogLevel(s, level)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:                 "backoffice",
		Usage:                "Command line for the bioimage.io collection backoffice",
		EnableBashCompletion: true,
		Before:               before,
		Flags: []cli.Flag{
			cliutil.RepoFlag,
			cliutil.FlagConfig,
			cliutil.FlagDryRun,
			cliutil.FlagVeryVerbose,
		},
		Commands: []*cli.Command{
			initCmd,
			stageCmd,
			testCmd,
			awaitReviewCmd,
			requestChangesCmd,
			publishCmd,
			backupCmd,
			generateCollectionJsonCmd,
			logCmd,
			chatCmd,
			statusCmd,
			wipeCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func requireArgs(cctx *cli.Context, n int) error {
	if cctx.NArg() != n {
		return types.Wrapf(types.ErrInvalidParameters, "%s expects %d arguments, got %d", cctx.Command.Name, n, cctx.NArg())
	}
	return nil
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "initialize the backoffice repo with a default config",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "folder",
			Usage: "root prefix of the collection inside the bucket",
		},
	},
	Action: func(cctx *cli.Context) error {
		r, err := repo.NewRepo(cctx.String(cliutil.FlagRepo))
		if err != nil {
			return err
		}
		if err := r.Init(cctx.String("folder")); err != nil {
			return err
		}
		fmt.Printf("config written to %s\n", r.ConfigPath())
		return nil
	},
}

var stageCmd = &cli.Command{
	Name:      "stage",
	Usage:     "unpack a zipped package as a new staged version",
	ArgsUsage: "<id> <package-url>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 2); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		sv, err := b.Stage(ctx, cctx.Args().Get(0), cctx.Args().Get(1))
		if err != nil {
			return err
		}
		console := color.New(color.FgGreen, color.Bold)
		console.Printf("staged %s %s\n", sv.Id(), sv.Version())
		fmt.Println(sv.RdfUrl())
		return nil
	},
}

var testCmd = &cli.Command{
	Name:      "test",
	Usage:     "run the validator on a version",
	ArgsUsage: "<id> <version>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 2); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		summary, err := b.Test(ctx, cctx.Args().Get(0), cctx.Args().Get(1))
		if err != nil {
			return err
		}
		console := color.New(color.FgGreen, color.Bold)
		if !summary.Passed() {
			console = color.New(color.FgRed, color.Bold)
		}
		console.Printf("%s: %s\n", summary.Name, summary.Status)
		for _, d := range summary.Details {
			fmt.Printf("  %s: %s\n", d.Name, d.Status)
		}
		return nil
	},
}

var awaitReviewCmd = &cli.Command{
	Name:      "await-review",
	Usage:     "mark a staged version as ready for review",
	ArgsUsage: "<id> <version>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 2); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return b.AwaitReview(ctx, cctx.Args().Get(0), cctx.Args().Get(1))
	},
}

var requestChangesCmd = &cli.Command{
	Name:      "request-changes",
	Usage:     "ask the uploader of a staged version for changes",
	ArgsUsage: "<id> <version> <reviewer> <reason>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 4); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		args := cctx.Args()
		return b.RequestChanges(ctx, args.Get(0), args.Get(1), args.Get(2), args.Get(3))
	},
}

var publishCmd = &cli.Command{
	Name:      "publish",
	Usage:     "publish a staged version",
	ArgsUsage: "<id> <version> <reviewer>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 3); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		args := cctx.Args()
		pv, err := b.Publish(ctx, args.Get(0), args.Get(1), args.Get(2))
		if err != nil {
			return err
		}
		console := color.New(color.FgMagenta, color.Bold)
		console.Printf("published %s %s\n", pv.Id(), pv.Version())
		return nil
	},
}

var backupCmd = &cli.Command{
	Name:  "backup",
	Usage: "archive published versions that have no doi yet",
	Action: func(cctx *cli.Context) error {
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return b.Backup(ctx)
	},
}

var generateCollectionJsonCmd = &cli.Command{
	Name:  "generate-collection-json",
	Usage: "write the collection manifest",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "mode",
			Usage: "published or staged",
			Value: "published",
		},
	},
	Action: func(cctx *cli.Context) error {
		mode, err := collection.ParseMode(cctx.String("mode"))
		if err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		if err := b.GenerateCollectionJson(ctx, mode); err != nil {
			return err
		}
		fmt.Println(b.Client().Url(mode.FileName()))
		return nil
	},
}

var logCmd = &cli.Command{
	Name:      "log",
	Usage:     "add a message to the log of a version",
	ArgsUsage: "<id> <version> <message>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 3); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		args := cctx.Args()
		return b.Log(ctx, args.Get(0), args.Get(1), args.Get(2))
	},
}

var chatCmd = &cli.Command{
	Name:      "chat",
	Usage:     "add a message to the chat of a version",
	ArgsUsage: "<id> <version>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "author",
			Value: "system",
		},
		&cli.StringFlag{
			Name:     "message",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 2); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		args := cctx.Args()
		return b.Chat(ctx, args.Get(0), args.Get(1), cctx.String("author"), cctx.String("message"))
	},
}

var statusCmd = &cli.Command{
	Name:      "status",
	Usage:     "show the versions of a resource",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if err := requireArgs(cctx, 1); err != nil {
			return err
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		id := cctx.Args().Get(0)
		v, err := b.Status(ctx, id)
		if err != nil {
			return err
		}

		title := color.New(color.FgCyan, color.Bold)
		title.Printf("%s\n", id)
		if v.ConceptDoi != nil {
			fmt.Printf("concept doi: %s\n", *v.ConceptDoi)
		}

		published := make([]int, 0, len(v.Published))
		for n := range v.Published {
			published = append(published, int(n))
		}
		sort.Ints(published)
		for _, n := range published {
			info := v.Published[types.PublishNumber(n)]
			fmt.Printf("  %d\tpublished from staged/%d\t%s\t%s\n", n, info.Status.StageNumber, deref(info.SemVer), deref(info.Doi))
		}

		staged := make([]int, 0, len(v.Staged))
		for n := range v.Staged {
			staged = append(staged, int(n))
		}
		sort.Ints(staged)
		for _, n := range staged {
			info := v.Staged[types.StageNumber(n)]
			if info.Status == nil {
				log.Warnf("staged/%d has no status", n)
				continue
			}
			fmt.Printf("  staged/%d\t%s (%d/%d)\t%s\t%s\n", n, info.Status.Name(), info.Status.Step(), types.NumSteps, deref(info.SemVer), info.Status.Describe())
		}
		return nil
	},
}

var wipeCmd = &cli.Command{
	Name:      "wipe",
	Usage:     "delete everything below a subfolder of a sandbox testing store",
	ArgsUsage: "<subfolder>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() > 1 {
			return requireArgs(cctx, 1)
		}
		b, ctx, closer, err := cliutil.GetBackoffice(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return b.Wipe(ctx, cctx.Args().Get(0))
	},
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

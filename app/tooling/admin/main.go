// This program performs administrative tasks against a running node.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/utxochain/app/tooling/admin/commands"
	"github.com/ardanlabs/utxochain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		if !errors.Is(err, ErrHelp) {
			log.Errorw("startup", "ERROR", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	log.Infow("startup", "version", build)

	return processCommands(os.Args, log)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, log *zap.SugaredLogger) error {
	if len(args) < 3 {
		fmt.Println("usage: admin chain|bals <node url>")
		return ErrHelp
	}

	switch args[1] {
	case "chain":
		if err := commands.Chain(log, args[2]); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}

	case "bals":
		if err := commands.Balances(log, args[2]); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}

	default:
		fmt.Println("chain <url>: download and verify the node's chain")
		fmt.Println("bals <url>:  print the balances replayed from the node's chain")
		return ErrHelp
	}

	return nil
}

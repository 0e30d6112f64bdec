package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"browser-pilot/internal/config"
	"browser-pilot/internal/entity"
	"browser-pilot/internal/ports"
	"browser-pilot/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Interface is the line-oriented frontend: each non-command line becomes
// one task for the control loop.
type Interface struct {
	config   *config.Config
	logger   *zap.Logger
	runner   ports.TaskRunner
	ctx      context.Context
	cancel   context.CancelFunc
	sigChan  chan os.Signal
	stopping bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Runner ports.TaskRunner
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, "Console")),
		runner:  params.Runner,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
}

func (i *Interface) Start() error {
	i.printBanner()

	signal.Notify(i.sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-i.sigChan
		fmt.Println("\nInterrupt received, stopping...")
		i.stopping = true
		i.cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if i.stopping {
			break
		}

		fmt.Print("\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if err.Error() == "exit" {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Printf("Error: %v\n", err)
		}
	}

	return nil
}

func (i *Interface) Stop() error {
	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("Stopping console...")
	i.cancel()

	return nil
}

func (i *Interface) handleCommand(input string) error {
	switch input {
	case "help", "h":
		i.printHelp()

		return nil
	case "exit", "quit", "q":
		fmt.Println("Shutting down...")

		return fmt.Errorf("exit")
	default:
		return i.runTask(input)
	}
}

func (i *Interface) runTask(description string) error {
	fmt.Printf("\nStarting task: %s\n", description)

	run, err := i.runner.Run(i.ctx, description)
	if err != nil {
		fmt.Printf("\nTask failed: %v\n", err)

		return nil
	}

	switch run.Outcome {
	case entity.OutcomeCompleted:
		fmt.Printf("\nTask completed in %d turns.\nResult: %s\n", len(run.Turns)-1, run.Result)
	case entity.OutcomeExhausted:
		fmt.Printf("\nTurn budget exhausted after %d turns without completion.\n", len(run.Turns))
	default:
		fmt.Printf("\nTask ended with outcome %s.\n", run.Outcome)
	}

	return nil
}

func (i *Interface) printBanner() {
	fmt.Println("browser-pilot: type a task, 'help' for commands")
}

func (i *Interface) printHelp() {
	fmt.Println(`Commands:
  <task text>   run a browser task
  help, h       show this help
  exit, quit, q leave`)
}

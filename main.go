package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cyoa-editor/config"
	"cyoa-editor/logger"
)

const version = "1.0.0"

// command è un sottocomando della riga di comando
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, app *app, args []string) error
}

// app contiene configurazione e logger condivisi dai sottocomandi
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

var commands = []command{
	{"serve", "avvia il backend HTTP (API, WebSocket, metriche)", runServe},
	{"migrate", "applica o annulla le migrazioni del database (up|down)", runMigrate},
	{"register", "registra un utente sul backend", runRegister},
	{"login", "ottiene un token dal backend", runLogin},
	{"edit", "modifica la storia locale (show|page|delete|select|start|follow|new|question|unquestion|reset|publish|export)", runEdit},
	{"play", "gioca una storia pubblicata nel terminale", runPlay},
	{"results", "mostra la dashboard delle partite sulle proprie storie", runResults},
	{"export", "esporta una storia in Twee 3 e opzionalmente la compila con tweego", runExport},
	{"import", "converte un file Twee 3 in una storia JSON", runImport},
	{"audit", "controlla tutte le storie JSON di una cartella", runAudit},
	{"watch", "ricontrolla le storie JSON a ogni modifica", runWatch},
	{"graph", "stampa nodi e archi di una storia in JSON", runGraph},
	{"render", "converte un file markdown (ansi|html|text)", runRender},
	{"simulate", "valida, simula o suggerisce percorsi in una storia", runSimulate},
}

func main() {
	global := flag.NewFlagSet("cyoa-editor", flag.ExitOnError)
	envFile := global.String("env", "", "file .env da caricare (default .env)")
	global.Usage = usage(global)
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Printf("CYOA Editor v%s\n", version)
		return
	}

	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "❌ Comando sconosciuto: %s\n\n", args[0])
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configurazione non valida: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, OutputPath: logOutput(cmd.name)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Impossibile creare il logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, &app{cfg: cfg, logger: log}, args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Command failed", zap.String("command", cmd.name), zap.Error(err))
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// logOutput manda i log su stderr, tranne il server che scrive su stdout.
// Il lettore interattivo occupa il terminale e scrive i log solo su file.
func logOutput(name string) string {
	switch name {
	case "serve":
		return "stdout"
	case "play":
		return "cyoa-player.log"
	}
	return "stderr"
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "CYOA Editor v%s\n", version)
		fmt.Fprintln(out, "================================")
		fmt.Fprintln(out, "Uso: cyoa-editor [-env file] <comando> [opzioni]")
		fmt.Fprintln(out)
		for _, c := range commands {
			fmt.Fprintf(out, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(out, "  %-10s %s\n", "version", "stampa la versione")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
}

// newFlags crea il FlagSet di un sottocomando
func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet("cyoa-editor "+name, flag.ContinueOnError)
}

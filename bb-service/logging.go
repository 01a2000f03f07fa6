package bbservice

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// SetupLogger builds the root logger for a service: terminal output at the
// given level, optionally teed into an append-only log file with
// "ISO8601 - message" lines.
func SetupLogger(level, logFile string) (log.Logger, error) {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlers := []log.Handler{
		log.StreamHandler(os.Stdout, log.TerminalFormat(true)),
	}
	if logFile != "" {
		fh, err := log.FileHandler(logFile, plainFormat())
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		handlers = append(handlers, fh)
	}

	l := log.New()
	l.SetHandler(log.LvlFilterHandler(lvl, log.MultiHandler(handlers...)))
	return l, nil
}

// plainFormat renders one record per line as "<ISO8601> - <message> k=v ...".
func plainFormat() log.Format {
	return log.FormatFunc(func(r *log.Record) []byte {
		line := r.Time.UTC().Format(time.RFC3339) + " - " + r.Msg
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			line += fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])
		}
		return []byte(line + "\n")
	})
}

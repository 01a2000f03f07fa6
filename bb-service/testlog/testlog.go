// Package testlog provides a log handler that forwards records to the
// testing framework, so service logs show up attached to the failing test
// instead of interleaved on stderr.
package testlog

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// Logger returns a logger which logs to the unit test log of t at the given
// level. Records below lvl are dropped.
func Logger(t *testing.T, lvl log.Lvl) log.Logger {
	l := log.New()
	l.SetHandler(log.LvlFilterHandler(lvl, log.FuncHandler(func(r *log.Record) error {
		t.Logf("%-5s %s %s", r.Lvl, r.Msg, formatCtx(r.Ctx))
		return nil
	})))
	return l
}

func formatCtx(ctx []interface{}) string {
	out := ""
	for i := 0; i+1 < len(ctx); i += 2 {
		out += fmt.Sprintf("%v=%v ", ctx[i], ctx[i+1])
	}
	return out
}

package minter

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
)

// CommandRunner executes the external inscription tool and captures its
// output. No time limit is imposed: the tool may legitimately take minutes
// and is assumed to terminate.
type CommandRunner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
}

// shellRunner runs the command through the shell. The subprocess is not
// bound to ctx on purpose: killing a wallet tool mid-inscription is worse
// than orphaning it on shutdown.
type shellRunner struct{}

func (shellRunner) Run(_ context.Context, command string) (string, string, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// buildCommand substitutes the wallet name, inscription file and
// destination address into the command template.
func buildCommand(template, wallet, file, destination string) string {
	r := strings.NewReplacer(
		"{wallet}", wallet,
		"{file}", file,
		"{destination}", destination,
	)
	return r.Replace(template)
}

// failureMarkers in stderr force a failure verdict even when stdout parsed.
// The matching is case-sensitive by contract with the wallet tool.
var failureMarkers = []string{"insufficient funds", "error", "failed"}

func stderrSignalsFailure(stderr string) bool {
	for _, marker := range failureMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// parseInscriptionID extracts the inscription identifier from tool stdout.
// Two formats are tolerated: a JSON object with inscriptions[0].id, and a
// plain "inscription_id: <value>" line.
func parseInscriptionID(stdout string) (string, bool) {
	var out struct {
		Inscriptions []struct {
			ID string `json:"id"`
		} `json:"inscriptions"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err == nil &&
		len(out.Inscriptions) > 0 && out.Inscriptions[0].ID != "" {
		return out.Inscriptions[0].ID, true
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := cutPrefix(line, "inscription_id:"); ok {
			if id := strings.TrimSpace(rest); id != "" {
				return id, true
			}
		}
	}
	return "", false
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

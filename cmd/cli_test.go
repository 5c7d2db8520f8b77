package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/squads-cli/squads-cli/auth"
)

// TestCreateRootCmd checks that createRootCmd returns a root command with the
// expected use string, subcommands, and a replaced help command.
func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd()
	if rootCmd.Use != "squads" {
		t.Errorf("expected root command use to be 'squads', got: %s", rootCmd.Use)
	}

	subCommands := rootCmd.Commands()
	if len(subCommands) == 0 {
		t.Error("expected root command to have subcommands, got none")
	}

	for _, cmd := range subCommands {
		if cmd.Use == "help" {
			t.Error("expected help command to be replaced, but found a subcommand with use 'help'")
		}
	}
}

func TestPrintSignInInstructions_PrefersProviderMessage(t *testing.T) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	printSignInInstructions(cmd, &auth.DeviceSession{
		UserCode:        "ABCD-1234",
		VerificationURL: "https://example.com/devicelogin",
		Message:         "To sign in, open https://example.com/devicelogin and enter the code ABCD-1234.",
	})

	out := buf.String()
	if !strings.Contains(out, "enter the code ABCD-1234") {
		t.Errorf("expected the provider's message to be shown, got: %s", out)
	}
	if strings.Contains(out, "Enter this code when prompted:") {
		t.Errorf("expected the fallback prompt to be suppressed, got: %s", out)
	}
}

func TestPrintSignInInstructions_FallsBackWithoutMessage(t *testing.T) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	printSignInInstructions(cmd, &auth.DeviceSession{
		UserCode:        "ABCD-1234",
		VerificationURL: "https://example.com/devicelogin",
	})

	out := buf.String()
	if !strings.Contains(out, "https://example.com/devicelogin") || !strings.Contains(out, "ABCD-1234") {
		t.Errorf("expected the fallback prompt to show the URL and code, got: %s", out)
	}
}

func TestAuthCmd_HasLifecycleSubcommands(t *testing.T) {
	cmd := authCmd()

	want := map[string]bool{"login": false, "status": false, "logout": false, "refresh": false, "token": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Use]; ok {
			want[sub.Use] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected auth subcommand %q to be registered", name)
		}
	}
}

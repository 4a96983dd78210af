package main

import (
	"testing"
	"time"

	"github.com/netopsai/switch-console/internal/config"
	"github.com/netopsai/switch-console/internal/security"
	"github.com/netopsai/switch-console/internal/session"
	"github.com/netopsai/switch-console/internal/testing/fakes/fakeclock"
	"github.com/netopsai/switch-console/internal/testing/fakes/faketransport"
)

// Scripted exchange for one full connect+login: elicit prompt, escalate,
// answer the enable secret, disable paging.
func queueLoginExchange(ft *faketransport.Transport) {
	ft.AddResponses(
		"\r\nSwitch>",
		"enable\r\nPassword: ",
		"\r\nSwitch#",
		"terminal length 0\r\nSwitch#",
	)
}

func TestEstablish_ConnectsAndLogsIn(t *testing.T) {
	t.Setenv("SC_TEST_USERNAME", "admin")
	t.Setenv("SC_TEST_PASSWORD", "userpass")
	t.Setenv("SC_TEST_ENABLE", "secret")

	ft := faketransport.New()
	queueLoginExchange(ft)
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sess := session.New(ft, session.Options{Clock: clock})

	cred := config.CredentialsConfig{
		UsernameEnv:       "SC_TEST_USERNAME",
		PasswordEnv:       "SC_TEST_PASSWORD",
		EnablePasswordEnv: "SC_TEST_ENABLE",
	}
	if err := establish(sess, &security.Resolver{}, cred, "catalyst-2960"); err != nil {
		t.Fatalf("establish() error = %v", err)
	}
	if !sess.LoggedIn() || !sess.EnableActive() {
		t.Errorf("LoggedIn=%v EnableActive=%v, want both true", sess.LoggedIn(), sess.EnableActive())
	}

	want := []string{"\r\n", "enable\r", "secret\r", "terminal length 0\r"}
	writes := ft.Writes()
	if len(writes) != len(want) {
		t.Fatalf("writes = %q, want %q", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, writes[i], want[i])
		}
	}
}

func TestEstablish_ReconnectAuthenticatesAgain(t *testing.T) {
	t.Setenv("SC_TEST_USERNAME", "admin")
	t.Setenv("SC_TEST_PASSWORD", "userpass")
	t.Setenv("SC_TEST_ENABLE", "secret")

	ft := faketransport.New()
	queueLoginExchange(ft)
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sess := session.New(ft, session.Options{Clock: clock})

	cred := config.CredentialsConfig{
		UsernameEnv:       "SC_TEST_USERNAME",
		PasswordEnv:       "SC_TEST_PASSWORD",
		EnablePasswordEnv: "SC_TEST_ENABLE",
	}
	if err := establish(sess, &security.Resolver{}, cred, "catalyst-2960"); err != nil {
		t.Fatalf("first establish() error = %v", err)
	}
	if err := sess.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	// A session lost mid-run must come back authenticated and privileged,
	// not merely reconnected.
	queueLoginExchange(ft)
	before := ft.WriteCount()
	if err := establish(sess, &security.Resolver{}, cred, "catalyst-2960"); err != nil {
		t.Fatalf("second establish() error = %v", err)
	}
	if !sess.LoggedIn() || !sess.EnableActive() {
		t.Errorf("after reconnect LoggedIn=%v EnableActive=%v, want both true",
			sess.LoggedIn(), sess.EnableActive())
	}

	want := []string{"\r\n", "enable\r", "secret\r", "terminal length 0\r"}
	writes := ft.Writes()[before:]
	if len(writes) != len(want) {
		t.Fatalf("reconnect writes = %q, want %q", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("reconnect write %d = %q, want %q", i, writes[i], want[i])
		}
	}
}

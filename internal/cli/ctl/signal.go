//go:build !windows && !plan9
// +build !windows,!plan9

package ctl

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/foxcpp/formdata/framework/log"
)

// waitForSignal blocks until the process is asked to stop. Second signal
// terminates the process right away.
func waitForSignal() os.Signal {
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)

	s := <-sig
	go func() {
		s := <-sig
		log.Printf("forced shutdown due to signal (%v)!", s)
		os.Exit(1)
	}()

	log.Printf("signal received (%v), next signal will force immediate shutdown.", s)
	return s
}

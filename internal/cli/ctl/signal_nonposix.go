//go:build windows || plan9
// +build windows plan9

package ctl

import (
	"os"
	"os/signal"

	"github.com/foxcpp/formdata/framework/log"
)

func waitForSignal() os.Signal {
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, os.Interrupt)

	s := <-sig
	go func() {
		s := <-sig
		log.Printf("forced shutdown due to signal (%v)!", s)
		os.Exit(1)
	}()

	log.Printf("signal received (%v), next signal will force immediate shutdown.", s)
	return s
}

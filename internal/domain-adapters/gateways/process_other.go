//go:build !unix

package gateways

import "os/exec"

func configureProcessGroup(_ *exec.Cmd) {}

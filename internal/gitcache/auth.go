// Copyright 2025 The Commodore Authors
// SPDX-License-Identifier: Apache-2.0

package gitcache

import (
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// authForRemote picks a transport.AuthMethod for the given (already
// canonicalized) remote URL. Authentication is delegated to the host's
// SSH/HTTPS stack: for SSH remotes we
// hand off to whatever agent is reachable via SSH_AUTH_SOCK (already
// passed through from the environment), and for HTTPS remotes we return
// nil, relying on the host's own credential configuration (netrc,
// credential helpers) being honored by the surrounding process, not by
// Commodore itself.
func authForRemote(remoteURL string) (transport.AuthMethod, error) {
	if !isSSHRemote(remoteURL) {
		return nil, nil
	}
	if os.Getenv("SSH_AUTH_SOCK") == "" {
		return nil, nil
	}
	auth, err := gitssh.NewSSHAgentAuth("git")
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func isSSHRemote(remoteURL string) bool {
	return strings.HasPrefix(remoteURL, "git@") || strings.HasPrefix(remoteURL, "ssh://")
}

package mailer

import (
	"net/smtp"

	"github.com/pkg/errors"
)

type xoauth2Auth struct {
	username    string
	accessToken string
}

// XOAuth2Auth authenticates with an OAuth access token, as Gmail and Outlook
// SMTP relays expect.
func XOAuth2Auth(username, accessToken string) smtp.Auth {
	return &xoauth2Auth{username: username, accessToken: accessToken}
}

func (a *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, errors.New("unencrypted connection")
	}
	return "XOAUTH2", []byte("user=" + a.username + "\x01auth=Bearer " + a.accessToken + "\x01\x01"), nil
}

// Next answers the server's error challenge with an empty response so the
// server completes the exchange with its failure code.
func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}

package rpc

import (
	"context"
	"fmt"
	"kwil-client/auth"
	"strings"

	"github.com/valyala/fasthttp"
)

// AuthParam is the login challenge issued by a gateway.
type AuthParam struct {
	Nonce          string `json:"nonce"`
	Statement      string `json:"statement"`
	IssueAt        string `json:"issue_at"`
	ExpirationTime string `json:"expiration_time"`
	ChainID        string `json:"chain_id"`
	Domain         string `json:"domain"`
	Version        string `json:"version"`
	URI            string `json:"uri"`
}

// AuthRequest answers an AuthParam challenge.
type AuthRequest struct {
	Nonce     string          `json:"nonce"`
	Sender    []byte          `json:"sender"`
	Signature *auth.Signature `json:"signature"`
}

// AuthParam fetches a login challenge from the gateway.
func (c *Client) AuthParam(ctx context.Context) (*AuthParam, error) {
	var resp struct {
		Result *AuthParam `json:"result"`
	}
	if err := c.get(ctx, "/auth", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: no auth parameters", ErrEmptyResponse)
	}
	return resp.Result, nil
}

// Authenticate posts a signed challenge and stores the returned cookie in sess.
func (c *Client) Authenticate(ctx context.Context, req *AuthRequest, sess *Session) error {
	resp, err := c.request(ctx, fasthttp.MethodPost, "/auth", req, nil)
	if err != nil {
		return err
	}
	if len(resp.cookies) == 0 {
		return fmt.Errorf("%w: gateway returned no cookie", ErrEmptyResponse)
	}

	sess.SetCookie(resp.cookies[0])
	return nil
}

// Logout ends the gateway session and clears sess.
func (c *Client) Logout(ctx context.Context, sess *Session) error {
	if _, err := c.request(ctx, fasthttp.MethodGet, "/logout", nil, sess); err != nil {
		return err
	}

	sess.Clear()
	return nil
}

// AuthMessage composes the sign-in message for the challenge, e.g.
//
//	kwil.test wants you to sign in with your account:
//	0x2c75...
//
//	Trust me
//
//	URI: https://kwil.test/auth
//	Version: 1
//	Chain ID: kwil-test
//	Nonce: 3f9a
//	Issue At: 2024-01-01T00:00:00Z
//	Expiration Time: 2024-01-01T00:10:00Z
func AuthMessage(param *AuthParam, sender string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants you to sign in with your account:\n", param.Domain)
	fmt.Fprintf(&b, "%s\n\n", sender)
	if param.Statement != "" {
		fmt.Fprintf(&b, "%s\n", param.Statement)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "URI: %s\n", param.URI)
	fmt.Fprintf(&b, "Version: %s\n", param.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", param.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", param.Nonce)
	fmt.Fprintf(&b, "Issue At: %s\n", param.IssueAt)
	fmt.Fprintf(&b, "Expiration Time: %s\n", param.ExpirationTime)

	return []byte(b.String())
}

// Login runs the whole gateway sign-in with signer and stores the cookie in sess.
func (c *Client) Login(ctx context.Context, signer auth.Signer, sess *Session) error {
	param, err := c.AuthParam(ctx)
	if err != nil {
		return fmt.Errorf("get auth parameters: %w", err)
	}

	sigType, err := auth.ResolveSignatureType(signer)
	if err != nil {
		return err
	}

	msg := AuthMessage(param, auth.FormatIdentity(sigType, signer.Identity()))
	sig, err := signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign auth message: %w", err)
	}

	return c.Authenticate(ctx, &AuthRequest{
		Nonce:     param.Nonce,
		Sender:    signer.Identity(),
		Signature: &auth.Signature{Signature: sig, Type: sigType},
	}, sess)
}

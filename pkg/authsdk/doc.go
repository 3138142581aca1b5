/*
Package authsdk is the client SDK and wire contract for the HostDesk admin
panel authentication API.

# SDKClient vs Session

The package is organized around two types:

  - SDKClient: public endpoints (login steps, password reset, first-run setup, health)
  - Session: endpoints that need a signed-in session token

Create an SDKClient and walk the login flow:

	client := authsdk.NewSDKClient("https://panel.example.com")

	resp, err := client.Login(ctx, authsdk.LoginRequest{Email: email, Password: password})
	switch {
	case err != nil:
		// *authsdk.APIError with Code "invalid_credentials", "rate_limited", ...
	case resp.Requires2FA:
		resp, err = client.VerifyTwoFactor(ctx, authsdk.VerifyTwoFactorRequest{
			SessionToken: resp.SessionToken,
			Code:         code,
		})
	case resp.Requires2FASetup:
		// BeginTwoFactorSetup then VerifyTwoFactorSetup with resp.SetupToken
	}

	session := client.NewSession(resp.Token)

Use a Session for account and administration calls:

	me, err := session.Me(ctx)
	users, err := session.ListUsers(ctx)

# Error Handling

Every non-success response is returned as *APIError carrying the HTTP
status, a machine readable Code and, for validation failures, per-field
Details:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeRateLimited {
		// back off
	}

The same APIError type is used by the server to write error responses, so the
client and server agree on the JSON shape.
*/
package authsdk

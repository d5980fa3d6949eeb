// Package auth identifies callers of the MCP search gateway.
//
// # Credentials
//
// Every MCP request must carry exactly one usable credential. Extract looks,
// in order, at:
//
//   - X-API-Key: a raw upstream API key, forwarded verbatim.
//   - Authorization: Bearer <token>, with the scheme matched
//     case-insensitively. Raw keys sent this way are still API keys.
//   - A delegated OAuth access token that DelegatedAuthMiddleware verified
//     and attached to the request context.
//
// The resulting Credential records its Source. Delegated credentials are not
// bound to an organization, so the MCP handler must resolve one before
// calling upstream; API keys already are.
//
// # Delegated Tokens
//
// When OAuth is enabled the gateway verifies JWT-shaped bearer tokens with
// an HS256 JWTVerifier:
//
//	verifier, err := NewJWTVerifier(secret, WithIssuer(iss))
//	claims, err := verifier.Verify(token)
//
// Tokens failing verification are rejected before reaching the MCP handler,
// with a WWW-Authenticate challenge pointing at the protected-resource
// metadata document.
//
// # OAuth Endpoints
//
//   - /.well-known/oauth-protected-resource: ProtectedResourceHandler
//   - /oauth/callback: CallbackHandler, the authorization-code exchange
package auth

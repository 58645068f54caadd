// Package client is the OTServHub Go SDK.
//
// It covers the full hub API surface: account signup and login, listing and
// managing game servers, hype votes, and the website-ownership verification
// flow that earns a listing its verified badge.
//
// # Connecting
//
//	c, err := client.New("https://otservhub.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := c.Login(ctx, "alice@example.com", "secret"); err != nil {
//	    log.Fatal(err)
//	}
//
// Login and Signup store the returned session token on the client, so
// authenticated calls work immediately afterwards. A token obtained elsewhere
// can be attached at construction time with WithBearerToken.
//
// # Verifying website ownership
//
// A listing gets its verified badge through a three-step flow: open a
// session, place the returned meta tag in the website's <head>, then ask the
// hub to check for it:
//
//	sess, err := c.StartVerification(ctx)
//	// ... deploy sess.MetaTag to https://myserver.com ...
//	result, err := c.VerifyWebsite(ctx, "https://myserver.com", sess.Token)
//	if errors.Is(err, client.ErrVerificationFailed) {
//	    log.Printf("check failed: %s (attempt %d)", result.Reason, result.Attempts)
//	}
//
// Each session allows a limited number of checks before it locks, so fix the
// reported reason before retrying.
//
// # Registering a server
//
//	srv, err := c.RegisterServer(ctx, client.RegisterServerRequest{
//	    Name:        "Dragon Realm",
//	    IP:          "play.dragonrealm.net",
//	    Port:        7171,
//	    Version:     "8.6",
//	    Website:     "https://dragonrealm.net",
//	    Description: "Mid-rate war server with weekly events.",
//	    MapType:     "custom",
//	    PvPType:     "PVP",
//	    Rate:        "50x",
//	    SessionID:   sess.ID, // links the verified session for the badge
//	})
//
// All methods take a context.Context and return wrapped errors suitable for
// errors.Is/errors.As inspection.
package client

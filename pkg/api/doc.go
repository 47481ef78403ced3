// Package api serves the console's HTTP API.
//
// Server owns the open console sessions. Each session pairs a session.State with a
// viewgate.Gate and a live user search, and is keyed by the X-Hub-Session header or
// the hub_session cookie:
//
//	server := api.NewServer(api.Deps{
//		Users:     userService,
//		Companies: companyService,
//		Identity:  session.NewDevSource(session.Identity{}),
//		Logger:    logger,
//	}, api.DefaultOptions())
//	http.ListenAndServe(":8080", server)
//
// Entity routes are grouped behind the capability that opens their page, so a denied
// request gets a 403 naming the capability before the service is reached. The
// services check again against the actor in the request context.
package api

// Route layout:
//
//	GET  /status        service descriptor
//	GET  /health        storage liveness
//	POST /login         phase one, rate limited
//	POST /verify-otp    phase two, rate limited
//	POST /logout        session required
//	GET  /me            session required
//	POST /admin/notify  admin session required
//	GET  /admin/login-events?username=&limit=  admin session required
//
// Usage:
//
//	mgr := server.NewManager(server.ServerConfigFrom(cfg), logger)
//	mgr.AddProvider(server.NewPanelProvider(cfg, store, services, logger))
//	mgr.Start(ctx)
package server

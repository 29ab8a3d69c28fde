package router

import (
	"github.com/gofiber/fiber/v2"
)

func InstallRouter(app *fiber.App) {
	setup(app, NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

// Router is implemented by route groups that attach themselves to the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

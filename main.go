package main

import (
	"log"
	"net/http"

	"backend/routes"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

func main() {
	app := pocketbase.New()

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		aiItinerary := routes.NewAIItinerary(app, nil)

		group := se.Router.Group("/api/trips/{tripId}")
		group.Bind(apis.RequireAuth())
		group.BindFunc(loadTrip)

		group.GET("/ai-itinerary", aiItinerary.Get)
		group.POST("/ai-itinerary", aiItinerary.Generate)
		group.GET("/ai-itinerary/calendar", aiItinerary.Calendar)

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// loadTrip resolves the {tripId} path segment into a trip record for the
// handlers downstream.
func loadTrip(e *core.RequestEvent) error {
	tripId := e.Request.PathValue("tripId")
	trip, err := e.App.FindRecordById("trips", tripId)
	if err != nil {
		return e.JSON(http.StatusNotFound, map[string]string{"error": "trip not found"})
	}
	e.Set("trip", trip)
	return e.Next()
}

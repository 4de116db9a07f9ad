package natsbus

import "fmt"

// Topic patterns for simulation event pub/sub.

func TopicSimulationEvents(simulationID string) string {
	return fmt.Sprintf("events.simulation.%s", simulationID)
}

const (
	TopicEventsAll        = "events.>"
	TopicEventsSimulation = "events.simulation.*"
)

package service

// SetupFanEntities is the fan platform entry point. Fan control is not
// implemented yet: it takes the coordinator and creates no entities.
func SetupFanEntities(coord *Coordinator) []StateView {
	_ = coord
	return nil
}

package app

// Init initialize all the app configuration and components
func Init() {
	initPostgres()
	initRepositories()
	initServices()
}

// Stop clean everything up before stopping the app
func Stop() {
	stopServices()
}

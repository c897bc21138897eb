package main

type config struct {
	BaseURL   string `mapstructure:"base_url"`
	ProjectID int64  `mapstructure:"project_id"`
	Key       string `mapstructure:"key"`
	Message   string `mapstructure:"message"`
	Interval  string `mapstructure:"interval"`
}

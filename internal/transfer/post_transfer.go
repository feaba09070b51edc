package transfer

type PostCreation struct {
	Caption       string   `json:"caption"`
	Platform      string   `json:"platform"`
	ImageURLs     []string `json:"image_urls"`
	ScheduledTime string   `json:"scheduled_time"`
}

package transfer

type TweetRequest struct {
	Text string `json:"text"`
}

type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type TweetResponse struct {
	Data Tweet `json:"data"`
}

type XUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type XUserResponse struct {
	Data XUser `json:"data"`
}

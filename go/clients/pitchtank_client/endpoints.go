package pitchtank_client

const (
	// Paths
	sessionStartPath    = "/api/session/start"
	pitchCompletePath   = "/api/session/%s/pitch-complete"
	userMessagePath     = "/api/session/%s/user-message"
	offerResponsePath   = "/api/session/%s/offer-response"
	SessionStreamPath   = "/api/session/%s/stream"
	transcribePath      = "/api/transcribe"
	chatPath            = "/api/chat"
	leaderboardPath     = "/api/leaderboard"
	userLeaderboardPath = "/api/leaderboard/user/%s"
	transcribeStatus    = "/api/transcribe/status"
	verifyTrustMRRPath  = "/api/verify/trustmrr"
	verifyDeFiPath      = "/api/verify/defi"
	searchDeFiPath      = "/api/verify/defi/search"
	verifyStatusPath    = "/api/verify/status"
	transcribeFormField = "audio"

	// Headers
	AuthorizationHeader = "Authorization"
	AcceptHeader        = "Accept"
	JsonContentType     = "application/json"
)

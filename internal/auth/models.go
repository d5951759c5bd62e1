package auth

// DevAuthRequest — запрос на dev-токен
type DevAuthRequest struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	PatientID string `json:"patient_id,omitempty"`
}

// DevAuthResponse — ответ на dev-авторизацию
type DevAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// JWTClaims documents the access token payload.
type JWTClaims struct {
	Sub       string `json:"sub"`                  // user id
	Role      string `json:"role"`                 // PRO | PATIENT | ADMIN
	PatientID string `json:"patient_id,omitempty"` // patient record of a PATIENT user
	Iss       string `json:"iss"`
	Exp       int64  `json:"exp"`
	Iat       int64  `json:"iat"`
}

package identity

// SeedAccount is a default account with a precomputed password hash.
type SeedAccount struct {
	Username     string
	PasswordHash string
}

// DefaultAccounts are created at startup when SEED_DEFAULT_USERS is on.
// Passwords: admin123, alice123, bob123, carol123. The 0002 migration inserts the same rows.
var DefaultAccounts = []SeedAccount{
	{Username: "admin", PasswordHash: "scrypt:a83d3e9bbd0ca943278a60fcf3073186:3e92dcbbed59a64bdb3f3aa1eddaf91224333e4b8f03b3c2d22c4b94e29655211cfe1f6bb30b33e05633e000499e2034b82cf66a4ebe98e4a40fab64ecc0f25c"},
	{Username: "alice", PasswordHash: "scrypt:94f322970bbd4f2bdb5f7d079c041db6:f12edaff7bf95b70906daadf342ad809fa496053da596b0317e9fb9d1e6030737151f2c3d7174f309dfd5728ef93797d365c4fef305fc54fd08bec4e925b0a0c"},
	{Username: "bob", PasswordHash: "scrypt:6ce9832ec698d179a8137d66042f3eec:dd69f31d67aab4d4ef7d2d9786f1296246cdd5a5874d7a0a6d67cf5c20eb9398826631d57d10df5007ad9085b6bf318b00c3fa6368423a1fcc30e9452a66935b"},
	{Username: "carol", PasswordHash: "scrypt:9beb440d91abb029a72094b9d1024e6a:cdcce4cb9ab533948ab4d11e461c489ace91446de2ed0fea72bab5ccbe510a4e02119551d43de3e3a593c4e55efdde1a37074a312cf99ee483b3fffac8cab779"},
}

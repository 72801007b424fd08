package storage

import _ "embed"

//go:embed seed/posts.json
var seedPosts []byte

//go:embed seed/users.json
var seedUsers []byte

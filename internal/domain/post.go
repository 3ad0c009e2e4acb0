package domain

// PostImage is one resolved image attached to an announcement.
type PostImage struct {
	Bytes []byte
	Alt   string
}

// Post is a fully composed announcement ready for the publisher.
type Post struct {
	Text   string
	Images []PostImage
}

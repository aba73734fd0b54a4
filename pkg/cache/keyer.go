package cache

// Keyer builds cache keys.
type Keyer interface {
	// PayloadKey keys the inflated payload fetched from url.
	PayloadKey(url string) string

	// RenderKey keys the encoded images of one render request over the
	// payload whose content hash is payloadHash.
	RenderKey(payloadHash string, opts RenderKeyOpts) string
}

// RenderKeyOpts holds every render setting that changes the output images.
type RenderKeyOpts struct {
	Offset   int         `json:"offset"`
	Palette  string      `json:"palette"` // content hash of the palette
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Mode     string      `json:"mode"`
	Minimum  *float64    `json:"minimum,omitempty"`
	Contour  bool        `json:"contour"`
	Tiled    bool        `json:"tiled"`
	Area     *[4]float64 `json:"area,omitempty"`     // lonL, lonR, latT, latB
	Category string      `json:"category,omitempty"` // composite only: type payload hash
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// PayloadKey returns "payload:<sha256(url)>".
func (DefaultKeyer) PayloadKey(url string) string {
	return hashKey("payload", url)
}

// RenderKey returns "render:<sha256(payloadHash, opts)>".
func (DefaultKeyer) RenderKey(payloadHash string, opts RenderKeyOpts) string {
	return hashKey("render", payloadHash, opts)
}

// ScopedKeyer prefixes every key of an inner Keyer. Servers sharing one
// Redis instance use it to keep their entries apart:
//
//	keyer := cache.NewScopedKeyer(nil, "grib2pf:refl:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// PayloadKey generates a prefixed payload key.
func (k *ScopedKeyer) PayloadKey(url string) string {
	return k.prefix + k.inner.PayloadKey(url)
}

// RenderKey generates a prefixed render key.
func (k *ScopedKeyer) RenderKey(payloadHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(payloadHash, opts)
}

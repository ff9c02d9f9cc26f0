package params

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMD   Format = "md"
)

type Engine string

const (
	EngineChromium Engine = "Chromium"
	EngineWebKit   Engine = "WebKit"
)

type WaitUntil string

const (
	WaitUntilDOMLoaded    WaitUntil = "DomLoaded"
	WaitUntilRequestsDone WaitUntil = "RequestsFinished"
	WaitUntilLoaded       WaitUntil = "Loaded"
)

type PDFOrientation string

const (
	PDFPortrait  PDFOrientation = "Portrait"
	PDFLandscape PDFOrientation = "Landscape"
)

type ResponseType string

const (
	ResponseJSON   ResponseType = "Json"
	ResponseBinary ResponseType = "Binary"
	ResponseBase64 ResponseType = "Base64"
)

// RenderOptions is the typed form of the common render parameters. Bag lists
// every field in declaration order; zero values are elided on
// canonicalization. Union slots are pointers: nil is absent, a non-nil slot
// with nothing populated is a usage error.
type RenderOptions struct {
	URL    string
	HTML   string
	Format Format

	Width        int
	Height       int
	FullPage     bool
	FullPageMode string
	Selector     string
	Delay        int
	Timeout      int
	Wait         *BoolNumberOrString
	WaitUntil    WaitUntil
	Quality      int
	Retina       bool
	Transparent  bool

	BlockAds          bool
	HideCookieBanners bool
	ClickAccept       bool
	FailOn4xx         bool
	FailOn5xx         bool
	BlockURLs         []string

	Cookie    *StringOrList
	Header    *StringOrList
	UserAgent string
	Engine    Engine
	DisableJs bool
	CSS       string
	JS        string

	PdfPageSize    string
	PdfOrientation PDFOrientation
	PdfBackground  bool
	PdfMargin      string

	UseS3      bool
	S3Bucket   string
	S3Path     string
	S3Endpoint string
	S3Region   string

	WebhookURL   string
	Metadata     bool
	Download     string
	ResponseType ResponseType
	TTL          int
	Force        bool
}

func (o RenderOptions) Bag() *Bag {
	bag := NewBag()
	bag.Set("URL", String(o.URL))
	bag.Set("HTML", String(o.HTML))
	bag.Set("Format", Enum(string(o.Format)))

	bag.Set("Width", Int(int64(o.Width)))
	bag.Set("Height", Int(int64(o.Height)))
	bag.Set("FullPage", Bool(o.FullPage))
	bag.Set("FullPageMode", Enum(o.FullPageMode))
	bag.Set("Selector", String(o.Selector))
	bag.Set("Delay", Int(int64(o.Delay)))
	bag.Set("Timeout", Int(int64(o.Timeout)))
	if o.Wait != nil {
		bag.Set("Wait", o.Wait.Value())
	}
	bag.Set("WaitUntil", Enum(string(o.WaitUntil)))
	bag.Set("Quality", Int(int64(o.Quality)))
	bag.Set("Retina", Bool(o.Retina))
	bag.Set("Transparent", Bool(o.Transparent))

	bag.Set("BlockAds", Bool(o.BlockAds))
	bag.Set("HideCookieBanners", Bool(o.HideCookieBanners))
	bag.Set("ClickAccept", Bool(o.ClickAccept))
	bag.Set("FailOn4xx", Bool(o.FailOn4xx))
	bag.Set("FailOn5xx", Bool(o.FailOn5xx))
	bag.Set("BlockURLs", List(o.BlockURLs...))

	if o.Cookie != nil {
		bag.Set("Cookie", o.Cookie.Value())
	}
	if o.Header != nil {
		bag.Set("Header", o.Header.Value())
	}
	bag.Set("UserAgent", String(o.UserAgent))
	bag.Set("Engine", Enum(string(o.Engine)))
	bag.Set("DisableJs", Bool(o.DisableJs))
	bag.Set("CSS", String(o.CSS))
	bag.Set("JS", String(o.JS))

	bag.Set("PdfPageSize", Enum(o.PdfPageSize))
	bag.Set("PdfOrientation", Enum(string(o.PdfOrientation)))
	bag.Set("PdfBackground", Bool(o.PdfBackground))
	bag.Set("PdfMargin", Enum(o.PdfMargin))

	bag.Set("UseS3", Bool(o.UseS3))
	bag.Set("S3Bucket", String(o.S3Bucket))
	bag.Set("S3Path", String(o.S3Path))
	bag.Set("S3Endpoint", String(o.S3Endpoint))
	bag.Set("S3Region", String(o.S3Region))

	bag.Set("WebhookURL", String(o.WebhookURL))
	bag.Set("Metadata", Bool(o.Metadata))
	bag.Set("Download", String(o.Download))
	bag.Set("ResponseType", Enum(string(o.ResponseType)))
	bag.Set("TTL", Int(int64(o.TTL)))
	bag.Set("Force", Bool(o.Force))
	return bag
}

// OutputFormat returns the requested format, png when unset.
func (o RenderOptions) OutputFormat() Format {
	if o.Format == "" {
		return FormatPNG
	}
	return o.Format
}

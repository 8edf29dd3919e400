// Package m3u renders the channel catalog as client playlists.
package m3u

import (
	"io"
	"strings"

	"github.com/valyala/bytebufferpool"

	"vavoo-proxy/catalog"
	"vavoo-proxy/utils"
)

const DefaultBouquetName = "iptv - All Channels"

type Options struct {
	// BaseURL is the externally reachable address of the proxy, without a
	// trailing slash.
	BaseURL string

	// UserAgent is advertised to players so they present as the provider client.
	UserAgent string

	BouquetName string
}

// StreamURL is the proxy address a player uses for ch.
func StreamURL(baseURL string, ch catalog.Channel) string {
	return strings.TrimSuffix(baseURL, "/") + "/stream/" + ch.ID
}

// WriteM3U writes an extended M3U playlist with one entry per channel, in
// catalog order.
func WriteM3U(w io.Writer, channels []catalog.Channel, opts Options) (int64, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("#EXTM3U\n")
	for _, ch := range channels {
		name := attr(ch.Name)
		_, _ = buf.WriteString(`#EXTINF:-1 tvg-name="`)
		_, _ = buf.WriteString(name)
		_, _ = buf.WriteString(`" group-title="`)
		_, _ = buf.WriteString(attr(ch.Group))
		_, _ = buf.WriteString(`" tvg-logo="" tvg-id="`)
		_, _ = buf.WriteString(name)
		_, _ = buf.WriteString(`",`)
		_, _ = buf.WriteString(line(ch.Name))
		_ = buf.WriteByte('\n')

		_, _ = buf.WriteString("#EXTVLCOPT:http-user-agent=")
		_, _ = buf.WriteString(opts.UserAgent)
		_ = buf.WriteByte('\n')

		_, _ = buf.WriteString(StreamURL(opts.BaseURL, ch))
		_ = buf.WriteByte('\n')
	}

	return buf.WriteTo(w)
}

// WriteBouquet writes a set-top-box bouquet listing every channel.
func WriteBouquet(w io.Writer, channels []catalog.Channel, opts Options) (int64, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	name := opts.BouquetName
	if name == "" {
		name = DefaultBouquetName
	}

	_, _ = buf.WriteString("#NAME ")
	_, _ = buf.WriteString(line(name))
	_ = buf.WriteByte('\n')

	for _, ch := range channels {
		title := line(ch.Name)
		_, _ = buf.WriteString("#SERVICE 1:0:1:0:0:0:0:0:0:0:")
		_, _ = buf.WriteString(utils.EncodeURIComponent(StreamURL(opts.BaseURL, ch)))
		_, _ = buf.WriteString("#sapp_tvgid=")
		_, _ = buf.WriteString(title)
		_, _ = buf.WriteString("&User-Agent=")
		_, _ = buf.WriteString(opts.UserAgent)
		_ = buf.WriteByte(':')
		_, _ = buf.WriteString(title)
		_ = buf.WriteByte('\n')

		_, _ = buf.WriteString("#DESCRIPTION ")
		_, _ = buf.WriteString(title)
		_ = buf.WriteByte('\n')
	}

	return buf.WriteTo(w)
}

// line keeps a value on a single playlist line.
func line(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// attr additionally drops quotes, which would end the attribute early.
func attr(s string) string {
	return strings.ReplaceAll(line(s), `"`, "'")
}

package alert

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
)

const mapZoom = 12

// alertHTML is the fixed message layout. Text fields come from the feed and
// are escaped by html/template; the map URLs are built locally from the
// bbox centroid and injected as-is.
const alertHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { margin: 0; padding: 0; background: #f4f4f4; font-family: Arial, sans-serif; }
        .container { max-width: 600px; margin: 20px auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
        .header { background: #d9534f; padding: 20px; text-align: center; color: white; font-size: 24px; font-weight: bold; }
        .content { padding: 20px; color: #333333; }
        .alert-badge { background: #dc3545; color: white; padding: 8px 16px; border-radius: 20px; display: inline-block; font-weight: bold; margin-bottom: 16px; }
        .info-box { background: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 10px; border-left: 5px solid #d9534f; }
        .map-container { text-align: center; margin: 20px 0; }
        iframe { width: 100%; height: 250px; border: none; border-radius: 8px; }
        .button { display: inline-block; padding: 12px 20px; background: #d9534f; color: white; border-radius: 8px; text-decoration: none; font-weight: bold; }
        .footer { background: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">Traffic Alert</div>
        <div class="content">
            <div class="alert-badge">Congestion level {{.JamLevel}}/5</div>
            <h2>{{.Name}}</h2>
            <div class="info-box"><strong>Extent:</strong> {{.LengthKM}} km</div>
            <div class="info-box"><strong>Speed:</strong> {{.SpeedKMH}} km/h</div>
            <div class="info-box"><strong>Stretch:</strong> {{.FromName}} &rarr; {{.ToName}}</div>
            <div class="info-box"><strong>Type:</strong> {{.Type}} ({{.SubType}})</div>
            <div class="info-box"><strong>Last update:</strong> {{.UpdatedAt}}</div>
            <div class="map-container">
                <iframe src="{{.EmbedURL}}" title="Live map"></iframe>
            </div>
            <div style="text-align: center;">
                <a href="{{.NavURL}}" class="button">Open in Waze</a>
            </div>
        </div>
        <div class="footer">
            <p>This is an automated alert. Please do not reply.</p>
            <p>Map data &copy; <a href="https://www.openstreetmap.org/">OpenStreetMap</a></p>
        </div>
    </div>
</body>
</html>`

var alertTmpl = template.Must(template.New("alert").Parse(alertHTML))

type composeData struct {
	Name      string
	JamLevel  int
	LengthKM  string
	SpeedKMH  string
	FromName  string
	ToName    string
	Type      string
	SubType   string
	UpdatedAt string
	NavURL    template.URL
	EmbedURL  template.URL
}

// Compose renders the alert body for one irregularity. Missing optional
// text fields render as "N/A"; nothing here touches network or storage.
func Compose(ir feed.Irregularity, avgSpeed float64, subType string) string {
	var lat, lng float64
	if ir.BBox != nil {
		lat, lng = ir.BBox.Centroid()
	}

	updatedAt := "N/A"
	if !ir.UpdatedAt.IsZero() {
		updatedAt = ir.UpdatedAt.Format("02/01/2006 15:04")
	}

	data := composeData{
		Name:      orNA(ir.Name),
		JamLevel:  ir.JamLevel,
		LengthKM:  fmt.Sprintf("%.2f", ir.LengthMeters/1000),
		SpeedKMH:  fmt.Sprintf("%.1f", avgSpeed),
		FromName:  orNA(ir.FromName),
		ToName:    orNA(ir.ToName),
		Type:      orNA(ir.Type),
		SubType:   orNA(subType),
		UpdatedAt: updatedAt,
		NavURL:    template.URL(NavLink(lat, lng)),
		EmbedURL:  template.URL(EmbedLink(lat, lng)),
	}

	var b strings.Builder
	if err := alertTmpl.Execute(&b, data); err != nil {
		// The template only touches flat fields; this cannot fire in
		// practice, but a broken body must not block the dispatch loop.
		return fmt.Sprintf("Traffic alert: %s (level %d/5)", data.Name, data.JamLevel)
	}
	return b.String()
}

// Subject builds the message subject line for an irregularity.
func Subject(ir feed.Irregularity) string {
	return fmt.Sprintf("Traffic alert: %s (level %d/5)", orNA(ir.Name), ir.JamLevel)
}

// NavLink is the deep link for direct navigation to the event centroid.
func NavLink(lat, lng float64) string {
	return fmt.Sprintf("https://waze.com/ul?ll=%.6f,%.6f&z=%d", lat, lng, mapZoom)
}

// EmbedLink is the embeddable live-map preview of the event centroid.
func EmbedLink(lat, lng float64) string {
	return fmt.Sprintf("https://embed.waze.com/iframe?zoom=%d&lat=%.6f&lon=%.6f", mapZoom, lat, lng)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Mailer sends the rendered digest over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (m *Mailer) Send(subject, htmlBody string) error {
	if m.Username == "" || m.Password == "" {
		return fmt.Errorf("smtp credentials not configured")
	}

	from := m.From
	if from == "" {
		from = m.Username
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, from, m.To, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

var digestTmpl = template.Must(template.New("digest").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  .header { background-color: #f4f4f4; padding: 10px; margin-bottom: 20px; }
  .event { border: 1px solid #ddd; margin: 10px 0; padding: 15px; border-radius: 5px; }
  .event-title { font-size: 18px; font-weight: bold; color: #333; }
  .event-date { color: #666; font-size: 14px; }
  .forecast { background-color: #e8f5e8; padding: 10px; margin: 10px 0; border-radius: 3px; }
  .weather { background-color: #f0f8ff; padding: 8px; margin: 5px 0; border-radius: 3px; }
  .trays { background-color: #fff3cd; padding: 8px; margin: 5px 0; border-radius: 3px; }
  .notes { font-style: italic; color: #666; margin-top: 10px; }
  .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #ddd; font-size: 12px; color: #888; }
</style>
</head>
<body>
  <div class="header">
    <h2>Upcoming Event Forecasts: {{.DateRange}}</h2>
    <p>Automated RSVP forecast generated at {{.GeneratedAt}}</p>
  </div>
{{range .Entries}}
  <div class="event">
    <div class="event-title">{{.Event.Name}}</div>
    <div class="event-date">{{.FormattedDate}}</div>
    <div class="forecast">
      <strong>Forecast:</strong> {{printf "%.0f" .Result.Selected}} attendees<br>
      <strong>Range:</strong> {{printf "%.0f" .Result.LowerBound}} &ndash; {{printf "%.0f" .Result.UpperBound}} attendees<br>
      <strong>Registered:</strong> {{.Event.RegisteredCount}} people
    </div>
    <div class="weather">
      <strong>Weather:</strong> {{printf "%.0f" .Weather.TemperatureFMax}}&deg;F, {{if .Weather.WeatherType}}{{.Weather.WeatherType}}{{else}}Clear{{end}}<br>
      <strong>Sunset:</strong> {{.Weather.SunsetTime}}
      {{if gt .Weather.PrecipitationSum 0.0}}<br><strong>Precipitation:</strong> {{printf "%.1f" .Weather.PrecipitationSum}}mm{{end}}
    </div>
    <div class="trays">
      <strong>Estimated serving trays:</strong> {{.Trays}} (@ {{$.TraysDivisor}} people per tray)
    </div>
    {{if .Notes}}<div class="notes"><strong>Notes:</strong> {{.Notes}}</div>{{end}}
  </div>
{{end}}
  <div class="footer">
    <p>Forecasts come from models trained on historical RSVP data.<br>
    Weather data from Open-Meteo.</p>
  </div>
</body>
</html>
`))

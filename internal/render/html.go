package render

import (
	"strings"
	"text/template"

	"moviepost-tg-bot/internal/media"
	"moviepost-tg-bot/internal/tmdb"
)

const (
	// Constants of the gated-download widget, not derived from anything.
	DefaultWaitSeconds   = 15
	DefaultSeedDownloads = 493

	placeholderPoster = "https://via.placeholder.com/400x600.png?text=No+Poster"
)

// HTMLOptions carries the per-deployment knobs of the post fragment.
type HTMLOptions struct {
	AdLink       string
	WaitSeconds  int
	SeedCounter  int
	TelegramLink string
}

type htmlData struct {
	PosterURL    string
	Title        string
	Year         string
	Language     string
	Overview     string
	Links        []media.Link
	AdLink       string
	WaitSeconds  int
	SeedCounter  int
	TelegramLink string
}

// The fragment is embedded into a blog's raw-HTML field. The host strips
// the leading boundary comment and uses <!--more--> as the fold marker, so
// everything below it must stand on its own. The countdown script embeds
// the ad link, wait seconds and link URLs verbatim; text/template is used
// (not html/template) because the host's sanitizer expects the script text
// byte-for-byte.
var postTemplate = template.Must(template.New("post").Parse(`<!-- Bot Generated Content Starts -->
<div style="text-align: center;">
    <img src="{{.PosterURL}}" alt="{{.Title}} Poster" style="max-width: 280px; border-radius: 8px; margin-bottom: 15px;">
    <h2>{{.Title}} ({{.Year}}){{if .Language}} - {{.Language}}{{end}}</h2>
    <p style="text-align: left; padding: 0 10px;">{{.Overview}}</p>
</div>
<!--more-->
<div class="dl-body" style="font-family: 'Segoe UI', sans-serif; background-color: #f0f2f5; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center;">
    <style>.dl-main-content{width:100%;max-width:500px;margin:auto}.dl-post-container{background:#fff;padding:20px;border-radius:20px;box-shadow:0 10px 30px rgba(0,0,0,.1);border:1px solid #e7eaf3}.dl-instruction-box{background-color:#e3f2fd;border:1px solid #90caf9;color:#1e88e5;padding:15px;border-radius:10px;margin-bottom:20px;text-align:center}.dl-instruction-box h2{margin:0 0 10px;font-size:18px}.dl-instruction-box p{margin:5px 0;font-size:14px;line-height:1.5}.dl-download-block{border:1px solid #ddd;border-radius:12px;padding:15px;margin-bottom:15px}.dl-download-button,.dl-real-download-link{display:block;width:100%;padding:15px;text-align:center;border-radius:12px;font-size:16px;font-weight:700;cursor:pointer;text-decoration:none;transition:.3s;box-sizing:border-box}.dl-download-button{background:#ff5722;color:#fff!important;border:none}.dl-real-download-link{background:#4caf50;color:#fff!important;display:none}.dl-telegram-link{display:block;width:100%;padding:15px;text-align:center;border-radius:12px;font-size:16px;font-weight:700;cursor:pointer;text-decoration:none;transition:.3s;box-sizing:border-box;background:#0088cc;color:#fff!important;margin-top:20px}.dl-timer-display{margin-top:10px;font-size:18px;font-weight:700;color:#d32f2f;background:#f0f0f0;padding:12px;border-radius:10px;text-align:center;display:none}.dl-download-count-text{margin-top:20px;font-size:15px;color:#555;text-align:center}</style>
    <div class="dl-main-content">
        <div class="dl-post-container">
            <div class="dl-instruction-box">
                <h2>🎬 How to Download</h2>
                <p>Clicking a download button opens a sponsor page.</p>
                <p>Wait for the timer to finish after it opens.</p>
                <p>Your download link appears when the timer ends.</p>
            </div>
            {{if .Links}}{{range .Links}}<div class="dl-download-block">
            <button class="dl-download-button" data-url="{{.URL}}" data-label="{{.Label}}">⬇️ {{.Label}}</button>
            <div class="dl-timer-display"></div>
            <a href="#" class="dl-real-download-link" target="_blank" rel="noopener noreferrer">✅ Get {{.Label}}</a>
            </div>
            {{end}}{{else}}<p>No download links available.</p>
            {{end}}<div class="dl-download-count-text">✅ Total Downloads: <span id="download-counter">{{.SeedCounter}}</span></div>
            <a class="dl-telegram-link" href="{{.TelegramLink}}" target="_blank" rel="noopener noreferrer">📣 Join Telegram Channel</a>
        </div>
    </div>
    <script>document.addEventListener("DOMContentLoaded",function(){const e="{{.AdLink}}",t={{.WaitSeconds}};document.querySelectorAll(".dl-download-button").forEach(function(n){n.onclick=function(){this.onclick=null;this.style.background="#aaa";this.style.cursor="not-allowed";var o=this.parentElement,l=o.querySelector(".dl-timer-display"),r=o.querySelector(".dl-real-download-link"),c=this.dataset.url;window.open(e,"_blank");this.style.display="none";l.style.display="block";r.href=c;var s=t;l.innerText="Please wait: "+s+"s";var i=setInterval(function(){s--;l.innerText="Please wait: "+s+"s";if(s<=0){clearInterval(i);l.style.display="none";r.style.display="block";var d=document.getElementById("download-counter");if(d){d.innerText=parseInt(d.innerText)+1}}},1000)}})});</script>
</div>
<!-- Bot Generated Content Ends -->
`))

// HTML renders the self-contained post fragment: poster header, fold
// marker, one gated download block per link in insertion order, and the
// countdown-gate script.
func HTML(rec *media.Record, links []media.Link, opts HTMLOptions) string {
	if opts.WaitSeconds <= 0 {
		opts.WaitSeconds = DefaultWaitSeconds
	}
	if opts.SeedCounter <= 0 {
		opts.SeedCounter = DefaultSeedDownloads
	}

	poster := tmdb.ImageURL(rec.PosterRef, "w500")
	if poster == "" {
		poster = placeholderPoster
	}
	overview := strings.TrimSpace(rec.Overview)
	if overview == "" {
		overview = "No overview available."
	}

	data := htmlData{
		PosterURL:    poster,
		Title:        rec.DisplayTitle(),
		Year:         rec.YearString(),
		Language:     strings.TrimSpace(rec.Language),
		Overview:     overview,
		Links:        links,
		AdLink:       opts.AdLink,
		WaitSeconds:  opts.WaitSeconds,
		SeedCounter:  opts.SeedCounter,
		TelegramLink: opts.TelegramLink,
	}

	var b strings.Builder
	if err := postTemplate.Execute(&b, data); err != nil {
		return ""
	}
	return b.String()
}

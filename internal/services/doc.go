// Package services holds the adapters the catalog talks to: the remote
// [Provider] used by search and the [Downloader] that fetches releases.
//
// # Qobuz
//
// [QobuzService] calls the public JSON API (album/search, track/search,
// artist/search, album/get). Every request carries app_id and the
// X-User-Auth-Token header, waits on a token bucket, and goes through
// go-retryablehttp so 429 and 5xx responses are retried.
//
// Responses are converted into the normalized [models.AlbumResult],
// [models.TrackResult] and [models.ArtistResult] shapes with Source "remote".
//
// # Streamrip
//
// [StreamripDownloader] runs `rip -ndb url <url>` after merging the download
// folder, folder/track naming formats and Qobuz credentials into streamrip's
// config.toml. The album directory the run created is reported as the output.
//
// # Error Handling
//
//   - [shared.ErrAPIRequest] : non-2xx response from the provider
//   - [shared.ErrServiceUnavailable] : transport failure or retries exhausted
//   - [shared.ErrDownloadFailed] : rip exited non-zero
package services

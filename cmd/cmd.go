// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// outputFlags are shared by every command that prints catalog data.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func pagingFlags(limit int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of rows",
			Value:   limit,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Rows to skip",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, storage directories and database",
		Action: r.Setup,
	}
}

// libraryCommand handles the local catalog
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Scan, verify and browse the local catalog",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Import audio files (every storage root when no path is given)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "album-id",
						Usage: "External catalog id of the album in path",
					},
					&cli.StringFlag{
						Name:  "album-url",
						Usage: "Source URL of the album in path",
					},
				}, outputFlags()...),
				Action: r.LibraryScan,
			},
			{
				Name:   "verify",
				Usage:  "Demote tracks whose files are gone and prune empty albums",
				Flags:  outputFlags(),
				Action: r.LibraryVerify,
			},
			{
				Name:  "albums",
				Usage: "List albums",
				Flags: append(append([]cli.Flag{
					&cli.BoolFlag{
						Name:    "downloaded",
						Aliases: []string{"d"},
						Usage:   "Only albums with files on disk",
					},
				}, pagingFlags(50)...), outputFlags()...),
				Action: r.LibraryAlbums,
			},
			{
				Name:  "album",
				Usage: "Show an album with its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:    "remote",
						Aliases: []string{"r"},
						Usage:   "Treat id as a provider album id",
					},
				}, outputFlags()...),
				Action: r.LibraryAlbum,
			},
			{
				Name:   "artists",
				Usage:  "List artists",
				Flags:  append(pagingFlags(50), outputFlags()...),
				Action: r.LibraryArtists,
			},
			{
				Name:  "artist",
				Usage: "Show an artist with their albums",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.LibraryArtist,
			},
			{
				Name:  "recent",
				Usage: "Recently added albums and recently played tracks",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of rows per list",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "featured",
						Usage: "Include the provider's new releases and curated picks",
					},
				}, outputFlags()...),
				Action: r.LibraryRecent,
			},
			{
				Name:  "check",
				Usage: "Check that a track can be played from disk",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags:  outputFlags(),
				Action: r.LibraryCheck,
			},
			{
				Name:   "stats",
				Usage:  "Count artists, albums and tracks",
				Flags:  outputFlags(),
				Action: r.LibraryStats,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the catalog and the remote provider",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "local",
				Aliases: []string{"l"},
				Usage:   "Skip the remote provider",
			},
			&cli.IntFlag{
				Name:  "albums",
				Usage: "Maximum albums (0 uses the configured limit)",
			},
			&cli.IntFlag{
				Name:  "tracks",
				Usage: "Maximum tracks (0 uses the configured limit)",
			},
			&cli.IntFlag{
				Name:  "artists",
				Usage: "Maximum artists (0 uses the configured limit)",
			},
		}, outputFlags()...),
		Action: r.Search,
	}
}

// queueCommand handles the playback queue
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "Manage the playback queue",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Show the queue",
				Flags:   outputFlags(),
				Action:  r.QueueList,
			},
			{
				Name:  "add",
				Usage: "Add a track to the queue",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "now",
						Usage: "Start playing the track",
					},
					&cli.BoolFlag{
						Name:  "next",
						Usage: "Insert right after the playing item",
					},
				}, outputFlags()...),
				Action: r.QueueAdd,
			},
			{
				Name:  "play-album",
				Usage: "Replace the queue with an album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "album-id"},
				},
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "start",
						Usage: "1-based track to start from",
						Value: 1,
					},
				}, outputFlags()...),
				Action: r.QueuePlayAlbum,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a queue item",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "item-id"},
				},
				Action: r.QueueRemove,
			},
			{
				Name:  "move",
				Usage: "Move a queue item to a new 1-based position",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "item-id"},
					&cli.StringArg{Name: "position"},
				},
				Action: r.QueueMove,
			},
			{
				Name:   "next",
				Usage:  "Advance to the next item",
				Flags:  outputFlags(),
				Action: r.QueueNext,
			},
			{
				Name:   "prev",
				Usage:  "Go back to the previous item",
				Flags:  outputFlags(),
				Action: r.QueuePrevious,
			},
			{
				Name:   "clear",
				Usage:  "Remove every queue item",
				Action: r.QueueClear,
			},
			{
				Name:   "now",
				Usage:  "Show the playing item",
				Flags:  outputFlags(),
				Action: r.QueueNow,
			},
			{
				Name:  "export",
				Usage: "Write the queue as an M3U playlist or CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file path",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "m3u or csv (defaults to the file extension)",
					},
				},
				Action: r.QueueExport,
			},
		},
	}
}

// downloadCommand handles download tasks
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download albums into the primary storage root",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Download an album URL, import it and optionally queue it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "play",
						Usage: "Replace the queue with the album and start playing",
					},
					&cli.BoolFlag{
						Name:  "next",
						Usage: "Insert the album after the playing item",
					},
					&cli.BoolFlag{
						Name:  "queue",
						Usage: "Append the album to the queue",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Display title for the task",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Display artist for the task",
					},
				}, outputFlags()...),
				Action: r.DownloadGet,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List download tasks",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "pending, downloading, completed, failed or cancelled",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of tasks",
						Value:   50,
					},
				}, outputFlags()...),
				Action: r.DownloadList,
			},
			{
				Name:  "cancel",
				Usage: "Cancel a pending task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.DownloadCancel,
			},
			{
				Name:  "retry",
				Usage: "Run a failed task again",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.DownloadRetry,
			},
			{
				Name:   "resume",
				Usage:  "Run every pending task",
				Action: r.DownloadResume,
			},
			{
				Name:  "cleanup",
				Usage: "Delete finished tasks older than the retention period",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Retention in days (0 uses downloads.retention_days)",
					},
				},
				Action: r.DownloadCleanup,
			},
		},
	}
}

func likesCommand(r *Runner) *cli.Command {
	albumFlag := func() cli.Flag {
		return &cli.BoolFlag{
			Name:  "album",
			Usage: "The id is an album id instead of a track id",
		}
	}
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:  "likes",
		Usage: "Like tracks and albums",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List liked tracks and albums, most recent first",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "tracks",
						Usage: "Only list tracks",
					},
					&cli.BoolFlag{
						Name:  "albums",
						Usage: "Only list albums",
					},
				}, outputFlags()...),
				Action: r.LikesList,
			},
			{
				Name:      "add",
				Usage:     "Like a track",
				Arguments: idArg,
				Flags:     append([]cli.Flag{albumFlag()}, outputFlags()...),
				Action:    r.LikesAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a like",
				Arguments: idArg,
				Flags:     append([]cli.Flag{albumFlag()}, outputFlags()...),
				Action:    r.LikesRemove,
			},
			{
				Name:      "status",
				Usage:     "Show whether a track is liked",
				Arguments: idArg,
				Flags:     append([]cli.Flag{albumFlag()}, outputFlags()...),
				Action:    r.LikesStatus,
			},
			{
				Name:   "ids",
				Usage:  "Print every liked track and album id",
				Flags:  outputFlags(),
				Action: r.LikesIDs,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show play history, newest first",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries",
				Value:   20,
			},
		}, outputFlags()...),
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "record",
				Usage: "Record a play of a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "duration",
						Usage: "Seconds listened",
					},
				},
				Action: r.HistoryRecord,
			},
		},
	}
}

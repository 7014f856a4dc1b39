package bot

import "trackbot/internal/pipeline"

// Messages are the fixed user-visible strings. Error details never reach users.
type Messages struct {
	EnterQuery         string
	ServiceUnavailable string
	NothingFound       string
	UnknownCommand     string
	UnknownService     string
	Stale              string
	Downloading        string
	Failed             string
	Stages             map[pipeline.Stage]string
}

var locales = map[string]Messages{
	"en": {
		EnterQuery:         "Enter a query",
		ServiceUnavailable: "Service unavailable",
		NothingFound:       "No tracks found for this query",
		UnknownCommand:     "Unknown command",
		UnknownService:     "Unknown service",
		Stale:              "Outdated message",
		Downloading:        "Downloading...",
		Failed:             "Failed to download the track",
		Stages: map[pipeline.Stage]string{
			pipeline.StageFetch:   "Downloading audio",
			pipeline.StageCover:   "Downloading cover",
			pipeline.StageProcess: "Adding metadata",
			pipeline.StageUpload:  "Uploading file",
		},
	},
	"ru": {
		EnterQuery:         "Введите запрос",
		ServiceUnavailable: "Сервис недоступен",
		NothingFound:       "Не найдено треков по данному запросу",
		UnknownCommand:     "Неизвестная команда",
		UnknownService:     "Неизвестный сервис",
		Stale:              "Устаревшее сообщение",
		Downloading:        "Скачиваем...",
		Failed:             "Не удалось скачать трек",
		Stages: map[pipeline.Stage]string{
			pipeline.StageFetch:   "Скачиваем аудио",
			pipeline.StageCover:   "Скачиваем обложку",
			pipeline.StageProcess: "Добавляем метаданные",
			pipeline.StageUpload:  "Загружаем файл",
		},
	},
}

// MessagesFor returns the strings for locale, falling back to English.
func MessagesFor(locale string) Messages {
	if m, ok := locales[locale]; ok {
		return m
	}
	return locales["en"]
}

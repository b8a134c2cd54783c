package logfields

import "go.uber.org/zap"

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}

func Event(val string) zap.Field {
	return zap.String("event", val)
}

func Locale(val string) zap.Field {
	return zap.String("locale", val)
}

func Locales(val []string) zap.Field {
	return zap.Strings("locales", val)
}

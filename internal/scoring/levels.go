package scoring

import "github.com/exportalisto/backend/internal/catalog"

// LevelConfig carries the static presentation data for one overall level.
type LevelConfig struct {
	Label       string
	Description string
	MinScore    int
}

// levelConfig holds the fixed labels and descriptions shown to the user.
// Static lookup data, never computed.
var levelConfig = map[Level]LevelConfig{
	LevelNotReady: {
		Label:       "No Listo para Exportar",
		Description: "Tu empresa necesita desarrollar capacidades fundamentales antes de iniciar el proceso de exportación. Enfócate en cerrar las brechas críticas identificadas.",
		MinScore:    0,
	},
	LevelEarlyStage: {
		Label:       "Etapa Inicial",
		Description: "Tienes algunos elementos básicos pero necesitas fortalecer varias áreas clave. Con trabajo enfocado en los próximos 3-6 meses podrías avanzar significativamente.",
		MinScore:    26,
	},
	LevelDeveloping: {
		Label:       "En Desarrollo",
		Description: "Estás en buen camino. Tienes capacidades importantes pero aún hay áreas por mejorar. Con ajustes específicos podrías estar listo en 2-4 meses.",
		MinScore:    51,
	},
	LevelReady: {
		Label:       "Listo para Exportar",
		Description: "¡Felicidades! Tu empresa tiene las capacidades básicas para iniciar exportaciones. Enfócate en optimizar las áreas de mejora identificadas mientras buscas tu primer cliente.",
		MinScore:    71,
	},
	LevelExportPro: {
		Label:       "Export Pro",
		Description: "¡Excelente! Tu empresa está muy bien preparada para el comercio internacional. Tienes las capacidades para competir en mercados globales.",
		MinScore:    86,
	},
}

// levelOrder lists the overall levels from the highest band down, the scan
// order for threshold checks against LevelConfig.MinScore.
var levelOrder = []Level{
	LevelExportPro,
	LevelReady,
	LevelDeveloping,
	LevelEarlyStage,
	LevelNotReady,
}

// ConfigForLevel returns the static label and description for a level.
func ConfigForLevel(l Level) LevelConfig {
	return levelConfig[l]
}

// LevelColor returns the display colour for an overall level.
func LevelColor(l Level) string {
	switch l {
	case LevelNotReady:
		return "#ef4444"
	case LevelEarlyStage:
		return "#f97316"
	case LevelDeveloping:
		return "#eab308"
	case LevelReady:
		return "#22c55e"
	case LevelExportPro:
		return "#3b82f6"
	}
	return ""
}

// CategoryLevelColor returns the display colour for a category level.
func CategoryLevelColor(l CategoryLevel) string {
	switch l {
	case CategoryCritical:
		return "#ef4444"
	case CategoryNeedsWork:
		return "#f97316"
	case CategoryDeveloping:
		return "#eab308"
	case CategoryReady:
		return "#22c55e"
	case CategoryExcellent:
		return "#3b82f6"
	}
	return ""
}

// SeverityLabel returns the Spanish display label for a gap severity.
func SeverityLabel(s catalog.Severity) string {
	switch s {
	case catalog.SeverityCritical:
		return "Crítico"
	case catalog.SeverityHigh:
		return "Alto"
	case catalog.SeverityMedium:
		return "Medio"
	case catalog.SeverityLow:
		return "Bajo"
	}
	return string(s)
}

// SeverityColor returns the display colour for a gap severity.
func SeverityColor(s catalog.Severity) string {
	switch s {
	case catalog.SeverityCritical:
		return "#ef4444"
	case catalog.SeverityHigh:
		return "#f97316"
	case catalog.SeverityMedium:
		return "#eab308"
	case catalog.SeverityLow:
		return "#22c55e"
	}
	return ""
}

// EffortLabel returns the Spanish display label for an effort bucket.
func EffortLabel(e catalog.Effort) string {
	switch e {
	case catalog.EffortQuickWin:
		return "Quick Win (1-2 semanas)"
	case catalog.EffortShortTerm:
		return "Corto Plazo (1-2 meses)"
	case catalog.EffortMediumTerm:
		return "Mediano Plazo (2-4 meses)"
	case catalog.EffortLongTerm:
		return "Largo Plazo (4+ meses)"
	}
	return string(e)
}

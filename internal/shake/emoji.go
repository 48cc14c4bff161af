package shake

// Emojis decorate every rendered message.
var Emojis = []string{
	"💫", "💝", "💘", "💖", "💕", "💓", "💗", "💞", "✨", "🌟",
	"🔥", "👼", "⭐", "💎", "💨", "🎉", "🕸️", "🤗", "💋", "😘",
	"🫂", "👫", "💟", "💌", "🥰", "😍", "🥺", "😢", "😭",
}

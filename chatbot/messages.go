package main

import "fmt"

// Message templates, grounded verbatim on original_source's core/messages.py.
const (
	welcomeMessageTmpl = "¡Hola %s! 👋 Soy tu asistente virtual. Ofrezco servicios de:\n" +
		"1️⃣ Mototaxi 🏍️\n2️⃣ Domicilios 🛍️\n3️⃣ Compras 🛒\n\n" +
		"Dime qué servicio necesitas o envía un mensaje de voz."

	processingMessage = "Estoy procesando tu solicitud, por favor espera un momento..."

	audioNotUnderstoodTmpl  = "¡Hola %s! Recibí tu audio, pero no pude entenderlo."
	audioProcessingErrorTmpl = "¡Hola %s! Hubo un problema al procesar tu audio."
	unsupportedMediaTmpl     = "¡Hola %s! Recibí un archivo, pero solo proceso audio o texto."
	messageNotUnderstoodTmpl = "¡Hola %s! No entendí tu mensaje."
	aiErrorTmpl              = "Lo siento %s, tuve un problema con la IA."

	serviceTypePromptTmpl = "Por favor, %s, ¿qué tipo de servicio necesitas?\n%s"

	missingFieldsPromptTmpl = "¡Entendido, %s! Para tu servicio de *%s*, necesito: %s."

	orderConfirmedTmpl = "¡Tu pedido de *%s* ha sido recibido y está siendo procesado! 🏍️🛍️\n" +
		"Te mantendremos informado."

	orderFailedMessage = "Lo siento, tuvimos un problema al enviar tu pedido. Intenta de nuevo más tarde."

	// driverAssignedTmpl has no direct original_source counterpart — the
	// original notified drivers through a separate channel entirely.
	// This fills the gap the client-notification event (spec §4.5)
	// implies: the outbound leg needs something to say once a driver is
	// assigned, so it follows the same tone as the other templates.
	driverAssignedTmpl = "¡Buenas noticias! 🏍️ %s va en camino. Placa: %s."
)

func driverAssignedMessage(driverName, vehiclePlate string) string {
	if vehiclePlate == "" {
		vehiclePlate = "pendiente"
	}
	return fmt.Sprintf(driverAssignedTmpl, driverName, vehiclePlate)
}

// serviceOptions lists the canonical service types in display order.
var serviceOptions = []struct {
	Key   string
	Label string
}{
	{"mototaxi", "Mototaxi"},
	{"domicilio", "Domicilios"},
	{"compras", "Compras"},
	{"otro", "Otro servicio"},
}

func formatServicesList() string {
	list := ""
	for i, opt := range serviceOptions {
		if i > 0 {
			list += "\n"
		}
		list += fmt.Sprintf("%d. %s", i+1, opt.Label)
	}
	return list
}

func welcomeMessage(name string) string {
	return fmt.Sprintf(welcomeMessageTmpl, name)
}

func serviceTypePrompt(name string) string {
	return fmt.Sprintf(serviceTypePromptTmpl, name, formatServicesList())
}

func missingFieldsPrompt(name, serviceType, missing string) string {
	return fmt.Sprintf(missingFieldsPromptTmpl, name, capitalize(serviceType), missing)
}

func orderConfirmedMessage(serviceType string) string {
	return fmt.Sprintf(orderConfirmedTmpl, serviceType)
}

// errorMessage maps an error kind to its templated reply, falling back
// to "message not understood" for anything unrecognized (mirrors
// dialogue_manager.py's get_error_message).
func errorMessage(kind, name string) string {
	switch kind {
	case "audio_not_understood":
		return fmt.Sprintf(audioNotUnderstoodTmpl, name)
	case "audio_error":
		return fmt.Sprintf(audioProcessingErrorTmpl, name)
	case "unsupported_media":
		return fmt.Sprintf(unsupportedMediaTmpl, name)
	case "ai_error":
		return fmt.Sprintf(aiErrorTmpl, name)
	case "order_failed":
		return orderFailedMessage
	default:
		return fmt.Sprintf(messageNotUnderstoodTmpl, name)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
